package openai

import (
	"bytes"
	"encoding/json"

	"github.com/unistreamhq/unistream/pkg/protocol"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// chatChunk is one chat-completions stream chunk, including the vendor
// extension fields used for citations. Extension citation payloads are left
// loosely typed because vendors disagree about string vs object items.
type chatChunk struct {
	ID      string                 `json:"id"`
	Choices []chatChoice           `json:"choices"`
	Usage   *usage.CompletionUsage `json:"usage"`

	Citations     []any       `json:"citations"`
	SearchInfo    *searchInfo `json:"search_info"`
	SearchResults []any       `json:"search_results"`
	WebSearch     []any       `json:"web_search"`
}

type searchInfo struct {
	SearchResults []any `json:"search_results"`
}

// citationSources returns the first non-empty citation extension on the
// chunk: Perplexity/xAI citations, Hunyuan search_info, Wenxin
// search_results, then Zhipu web_search.
func (c chatChunk) citationSources() []any {
	if len(c.Citations) > 0 {
		return c.Citations
	}
	if c.SearchInfo != nil && len(c.SearchInfo.SearchResults) > 0 {
		return c.SearchInfo.SearchResults
	}
	if len(c.SearchResults) > 0 {
		return c.SearchResults
	}
	return c.WebSearch
}

// chatChoice is one choice entry. Delta is kept both parsed and raw: the
// fallback dispatch rules pass the raw delta through as a data event, and
// present-but-null fields must stay distinguishable from absent ones.
type chatChoice struct {
	Index        int
	Delta        chatDelta
	DeltaRaw     json.RawMessage
	FinishReason *string
	Messages     []chatMessage
}

func (c *chatChoice) UnmarshalJSON(b []byte) error {
	var aux struct {
		Index        int             `json:"index"`
		Delta        json.RawMessage `json:"delta"`
		FinishReason *string         `json:"finish_reason"`
		Messages     []chatMessage   `json:"messages"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	c.Index = aux.Index
	c.DeltaRaw = aux.Delta
	c.FinishReason = aux.FinishReason
	c.Messages = aux.Messages
	if c.hasDelta() {
		return json.Unmarshal(aux.Delta, &c.Delta)
	}
	return nil
}

func (c chatChoice) hasDelta() bool {
	return len(c.DeltaRaw) > 0 && !bytes.Equal(c.DeltaRaw, jsonNull)
}

// chatDelta is the incremental delta object. Content and the two reasoning
// fields stay raw so presence, null, string, and structured-array shapes can
// be told apart during source resolution.
type chatDelta struct {
	Content          json.RawMessage   `json:"content"`
	ReasoningContent json.RawMessage   `json:"reasoning_content"`
	Reasoning        json.RawMessage   `json:"reasoning"`
	Role             string            `json:"role"`
	ToolCalls        []chatToolCall    `json:"tool_calls"`
	Images           []json.RawMessage `json:"images"`
	Annotations      []chatAnnotation  `json:"annotations"`
}

func (d chatDelta) contentIsNull() bool {
	return bytes.Equal(d.Content, jsonNull)
}

func (d chatDelta) contentString() (string, bool) {
	return rawString(d.Content)
}

// resolveSources normalizes the vendor shape differences into one pair of
// optional strings. Reasoning resolution stops at the first field present on
// the wire even when its value is null: a vendor that sends
// reasoning_content: null alongside plain content means "no reasoning", not
// "look elsewhere". The structured-content shape (an array of thinking
// blocks) is only consulted when neither dedicated field exists.
func (d chatDelta) resolveSources() (reasoning, content *string) {
	switch {
	case len(d.ReasoningContent) > 0:
		reasoning = rawStringPtr(d.ReasoningContent)
	case len(d.Reasoning) > 0:
		reasoning = rawStringPtr(d.Reasoning)
	default:
		if blocks, ok := thinkingBlocks(d.Content); ok {
			reasoning = &blocks
		}
	}
	content = rawStringPtr(d.Content)
	return reasoning, content
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func rawStringPtr(raw json.RawMessage) *string {
	if s, ok := rawString(raw); ok {
		return &s
	}
	return nil
}

// thinkingBlocks joins the nested text items of "thinking"-typed blocks in a
// structured content array. Each block's thinking field is itself an array of
// typed text items; blocks whose thinking is any other shape are skipped.
func thinkingBlocks(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '[' {
		return "", false
	}
	var blocks []struct {
		Type     string          `json:"type"`
		Thinking json.RawMessage `json:"thinking"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return "", false
	}
	var joined string
	for _, b := range blocks {
		if b.Type != "thinking" || len(b.Thinking) == 0 || b.Thinking[0] != '[' {
			continue
		}
		var items []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if json.Unmarshal(b.Thinking, &items) != nil {
			continue
		}
		for _, item := range items {
			if item.Type == "text" && item.Text != "" {
				joined += item.Text
			}
		}
	}
	return joined, true
}

type chatToolCall struct {
	Index    *int              `json:"index"`
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Function *chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name      *string `json:"name"`
	Arguments string  `json:"arguments"`
}

type chatAnnotation struct {
	Type        string      `json:"type"`
	URLCitation urlCitation `json:"url_citation"`
}

type urlCitation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// chatMessage is one entry of the MiniMax messages array. Its annotations
// use a flat shape, not the url_citation wrapper delta annotations use.
type chatMessage struct {
	Role        string              `json:"role"`
	Annotations []messageAnnotation `json:"annotations"`
}

type messageAnnotation struct {
	Text  string `json:"text"`
	URL   string `json:"url"`
	Quote string `json:"quote"`
}

// mapCitations normalizes the loose citation items vendors ship: bare URL
// strings become title/url pairs, objects contribute their title plus either
// a url or a link field. Items missing a title or a URL are dropped; some
// vendor search tools return entries with an empty link.
func mapCitations(items []any) []protocol.CitationItem {
	out := make([]protocol.CitationItem, 0, len(items))
	for _, item := range items {
		var c protocol.CitationItem
		switch v := item.(type) {
		case string:
			c = protocol.CitationItem{Title: v, URL: v}
		case map[string]any:
			title, _ := v["title"].(string)
			url, _ := v["url"].(string)
			if url == "" {
				url, _ = v["link"].(string)
			}
			c = protocol.CitationItem{Title: title, URL: url}
		default:
			continue
		}
		if c.Title == "" || c.URL == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}
