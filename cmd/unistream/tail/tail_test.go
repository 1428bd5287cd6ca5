package tailcmder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/storage/sqlite"
	"github.com/unistreamhq/unistream/pkg/usage"
)

func tailTestRecord(id string, startedAt time.Time) *storage.StreamRecord {
	return &storage.StreamRecord{
		ID:          id,
		Provider:    "openai",
		Dialect:     "chat",
		Model:       "gpt-4.1",
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(900 * time.Millisecond),
		DurationMs:  900,
		HTTPStatus:  200,
		Usage:       &usage.Usage{TotalInputTokens: 5, TotalOutputTokens: 7, TotalTokens: 12},
		Events: []storage.StoredEvent{
			{Seq: 0, Type: "text", ID: id, Data: json.RawMessage(`"Hello"`)},
			{Seq: 1, Type: "stop", ID: id, Data: json.RawMessage(`"stop"`)},
		},
	}
}

var _ = Describe("formatUsage", func() {
	It("summarizes the normalized token totals", func() {
		u := &usage.Usage{TotalInputTokens: 5, TotalOutputTokens: 7, TotalTokens: 12}
		Expect(formatUsage(u)).To(Equal("5 prompt + 7 completion = 12 total"))
	})
})

var _ = Describe("eventDataString", func() {
	It("unwraps bare JSON strings", func() {
		Expect(eventDataString(json.RawMessage(`"Hello"`))).To(Equal("Hello"))
	})

	It("compacts structured payloads", func() {
		raw := json.RawMessage("{\n  \"total_tokens\": 12\n}")
		Expect(eventDataString(raw)).To(Equal(`{"total_tokens":12}`))
	})

	It("returns empty for missing payloads", func() {
		Expect(eventDataString(nil)).To(Equal(""))
	})
})

var _ = Describe("Tail command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "unistream-tail-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		Expect(os.MkdirAll(filepath.Join(tmpDir, ".unistream"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("against a local SQLite database", func() {
		var dbPath string

		BeforeEach(func() {
			dbPath = filepath.Join(tmpDir, "transcripts.db")
			driver, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer driver.Close()

			Expect(driver.SaveStream(context.Background(), tailTestRecord("chatcmpl-old", time.Now().UTC().Add(-time.Hour)))).To(Succeed())
			Expect(driver.SaveStream(context.Background(), tailTestRecord("chatcmpl-new", time.Now().UTC()))).To(Succeed())
		})

		It("shows the newest stream by default", func() {
			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--db", dbPath, "--no-markdown"})
			Expect(cmd.Execute()).To(Succeed())

			// The shown stream becomes the remembered session.
			data, err := os.ReadFile(filepath.Join(tmpDir, ".unistream", "session.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("chatcmpl-new"))
		})

		It("shows a specific stream with --id", func() {
			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--db", dbPath, "--id", "chatcmpl-old", "--no-markdown"})
			Expect(cmd.Execute()).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".unistream", "session.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("chatcmpl-old"))
		})

		It("errors on unknown stream ids", func() {
			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--db", dbPath, "--id", "missing"})
			Expect(cmd.Execute()).To(HaveOccurred())
		})

		It("errors when the database is empty", func() {
			emptyPath := filepath.Join(tmpDir, "empty.db")
			driver, err := sqlite.NewSQLiteDriver(emptyPath)
			Expect(err).NotTo(HaveOccurred())
			driver.Close()

			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--db", emptyPath})
			Expect(cmd.Execute()).To(HaveOccurred())
		})
	})

	Describe("against the transcript API", func() {
		var server *httptest.Server

		BeforeEach(func() {
			record := tailTestRecord("resp_123", time.Now().UTC())

			mux := http.NewServeMux()
			mux.HandleFunc("/streams", func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"count":   1,
					"streams": []*storage.StreamRecord{record},
				})
			})
			mux.HandleFunc("/streams/resp_123", func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(record)
			})
			server = httptest.NewServer(mux)
		})

		AfterEach(func() {
			server.Close()
		})

		It("fetches the newest stream over HTTP", func() {
			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--api-target", server.URL, "--json"})
			Expect(cmd.Execute()).To(Succeed())

			data, err := os.ReadFile(filepath.Join(tmpDir, ".unistream", "session.json"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("resp_123"))
		})

		It("errors when the API is unreachable", func() {
			cmd := NewTailCmd()
			cmd.SetArgs([]string{"--api-target", "http://localhost:1", "--id", "resp_123"})
			Expect(cmd.Execute()).To(HaveOccurred())
		})
	})
})
