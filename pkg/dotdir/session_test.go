package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-test-*")
		Expect(err).NotTo(HaveOccurred())
		m = dotdir.NewManager()
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("LoadSessionState", func() {
		It("returns nil when no session file exists", func() {
			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(BeNil())
		})

		It("loads a valid session state", func() {
			data := `{"stream_id":"chatcmpl-123","provider":"openai","model":"gpt-4o","finished_at":"2025-06-01T12:00:00Z"}`
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte(data), 0o600)
			Expect(err).NotTo(HaveOccurred())

			state, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).NotTo(BeNil())
			Expect(state.StreamID).To(Equal("chatcmpl-123"))
			Expect(state.Provider).To(Equal("openai"))
			Expect(state.Model).To(Equal("gpt-4o"))
		})

		It("errors on malformed JSON", func() {
			err := os.WriteFile(filepath.Join(tmpDir, "session.json"), []byte("{not json"), 0o600)
			Expect(err).NotTo(HaveOccurred())

			_, err = m.LoadSessionState(tmpDir)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("SaveSession", func() {
		It("round-trips the session state", func() {
			state := &dotdir.SessionState{
				StreamID:   "chatcmpl-456",
				Provider:   "deepseek",
				FinishedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			}
			Expect(m.SaveSession(state, tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.StreamID).To(Equal("chatcmpl-456"))
			Expect(loaded.Provider).To(Equal("deepseek"))
			Expect(loaded.FinishedAt.Equal(state.FinishedAt)).To(BeTrue())
		})

		It("rejects a nil state", func() {
			Expect(m.SaveSession(nil, tmpDir)).To(HaveOccurred())
		})
	})

	Describe("ClearSession", func() {
		It("removes an existing session file", func() {
			state := &dotdir.SessionState{StreamID: "chatcmpl-789"}
			Expect(m.SaveSession(state, tmpDir)).To(Succeed())

			Expect(m.ClearSession(tmpDir)).To(Succeed())

			loaded, err := m.LoadSessionState(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(BeNil())
		})

		It("is a no-op when no session file exists", func() {
			Expect(m.ClearSession(tmpDir)).To(Succeed())
		})
	})
})
