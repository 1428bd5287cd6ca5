package openai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/unistreamhq/unistream/pkg/protocol"
)

const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

func stripThinkTags(s string) string {
	s = strings.ReplaceAll(s, thinkOpenTag, "")
	return strings.ReplaceAll(s, thinkCloseTag, "")
}

func containsThinkOpen(s string) bool  { return strings.Contains(s, thinkOpenTag) }
func containsThinkClose(s string) bool { return strings.Contains(s, thinkCloseTag) }

// markdownBase64ImageRE matches a markdown image whose target is an inline
// base64 data URI. Some vendors embed generated previews this way inside
// ordinary text deltas.
var markdownBase64ImageRE = regexp.MustCompile(`!\[[^\]]*]\(\s*(data:image/[\d+.A-Za-z-]+;base64,[^\s)]+)\s*\)`)

// extractBase64Images strips markdown-embedded base64 images from text,
// returning the cleaned text and the extracted data URIs in order.
func extractBase64Images(text string) (string, []string) {
	matches := markdownBase64ImageRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text, nil
	}
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		urls = append(urls, m[1])
	}
	cleaned := strings.TrimSpace(markdownBase64ImageRE.ReplaceAllString(text, ""))
	return cleaned, urls
}

// imageRichText splits text carrying embedded images into a cleaned text
// event followed by one base64_image event per image. found is false when
// the text embeds no images, leaving classification to the caller.
func imageRichText(id, text string) ([]protocol.Event, bool) {
	cleaned, urls := extractBase64Images(text)
	if len(urls) == 0 {
		return nil, false
	}
	events := make([]protocol.Event, 0, len(urls)+1)
	if cleaned != "" {
		events = append(events, protocol.Event{Type: protocol.EventText, ID: id, Data: cleaned})
	}
	for _, url := range urls {
		events = append(events, protocol.Event{Type: protocol.EventBase64Image, ID: id, Data: url})
	}
	return events, true
}

// textWithImages is the finish-reason variant: trailing content always
// renders as text, with any embedded images split out after it.
func textWithImages(id, text string) []protocol.Event {
	if events, found := imageRichText(id, text); found {
		return events
	}
	return []protocol.Event{{Type: protocol.EventText, ID: id, Data: text}}
}

// resolveImageURL digs a usable URL out of the several nesting shapes
// vendors use for inline image deltas: a bare string, {url}, {image_url:
// {url}}, or the doubly wrapped {image_url: {image_url: {url}}}.
func resolveImageURL(raw json.RawMessage) string {
	if s, ok := rawString(raw); ok {
		return s
	}
	var img struct {
		URL      string `json:"url"`
		ImageURL struct {
			URL      string `json:"url"`
			ImageURL struct {
				URL string `json:"url"`
			} `json:"image_url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(raw, &img); err != nil {
		return ""
	}
	switch {
	case img.ImageURL.URL != "":
		return img.ImageURL.URL
	case img.ImageURL.ImageURL.URL != "":
		return img.ImageURL.ImageURL.URL
	default:
		return img.URL
	}
}
