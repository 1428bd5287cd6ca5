package inmemory_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/storage"
	"github.com/unistreamhq/unistream/pkg/storage/inmemory"
	"github.com/unistreamhq/unistream/pkg/usage"
)

// testRecord creates a stream record fixture with two events starting at the
// given time.
func testRecord(id string, startedAt time.Time) *storage.StreamRecord {
	return &storage.StreamRecord{
		ID:          id,
		Provider:    "openai",
		Dialect:     "chat",
		Model:       "gpt-4.1",
		StartedAt:   startedAt,
		CompletedAt: startedAt.Add(2 * time.Second),
		DurationMs:  2000,
		HTTPStatus:  200,
		Usage: &usage.Usage{
			TotalInputTokens:  5,
			TotalOutputTokens: 7,
			TotalTokens:       12,
		},
		Events: []storage.StoredEvent{
			{Seq: 0, Type: "text", ID: id, Data: json.RawMessage(`"hello"`)},
			{Seq: 1, Type: "stop", ID: id, Data: json.RawMessage(`"stop"`)},
		},
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		now = time.Unix(1735689600, 0).UTC()
	})

	Describe("SaveStream", func() {
		It("stores a record", func() {
			Expect(driver.SaveStream(ctx, testRecord("s1", now))).To(Succeed())
			Expect(driver.Count()).To(Equal(1))
		})

		It("replaces a record with the same id", func() {
			Expect(driver.SaveStream(ctx, testRecord("s1", now))).To(Succeed())

			updated := testRecord("s1", now)
			updated.Model = "gpt-4.1-mini"
			Expect(driver.SaveStream(ctx, updated)).To(Succeed())

			got, err := driver.GetStream(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Model).To(Equal("gpt-4.1-mini"))
			Expect(driver.Count()).To(Equal(1))
		})

		It("rejects nil records", func() {
			Expect(driver.SaveStream(ctx, nil)).To(HaveOccurred())
		})

		It("rejects records without an id", func() {
			record := testRecord("", now)
			Expect(driver.SaveStream(ctx, record)).To(HaveOccurred())
		})
	})

	Describe("GetStream", func() {
		It("returns the record with events", func() {
			Expect(driver.SaveStream(ctx, testRecord("s1", now))).To(Succeed())

			got, err := driver.GetStream(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Provider).To(Equal("openai"))
			Expect(got.Events).To(HaveLen(2))
			Expect(got.Events[0].Type).To(Equal("text"))
			Expect(got.Usage.TotalTokens).To(Equal(12))
		})

		It("returns NotFoundError for missing ids", func() {
			_, err := driver.GetStream(ctx, "nope")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "nope"}))
		})
	})

	Describe("ListStreams", func() {
		BeforeEach(func() {
			Expect(driver.SaveStream(ctx, testRecord("s1", now))).To(Succeed())
			Expect(driver.SaveStream(ctx, testRecord("s2", now.Add(time.Minute)))).To(Succeed())
			Expect(driver.SaveStream(ctx, testRecord("s3", now.Add(2*time.Minute)))).To(Succeed())
		})

		It("orders records most recent first without events", func() {
			records, err := driver.ListStreams(ctx, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(3))
			Expect(records[0].ID).To(Equal("s3"))
			Expect(records[2].ID).To(Equal("s1"))
			Expect(records[0].Events).To(BeEmpty())
		})

		It("honors the limit", func() {
			records, err := driver.ListStreams(ctx, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].ID).To(Equal("s3"))
			Expect(records[1].ID).To(Equal("s2"))
		})
	})

	Describe("DeleteStream", func() {
		It("removes a record", func() {
			Expect(driver.SaveStream(ctx, testRecord("s1", now))).To(Succeed())
			Expect(driver.DeleteStream(ctx, "s1")).To(Succeed())
			Expect(driver.Count()).To(Equal(0))
		})

		It("returns NotFoundError for missing ids", func() {
			err := driver.DeleteStream(ctx, "nope")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "nope"}))
		})
	})

	It("closes without error", func() {
		Expect(driver.Close()).To(Succeed())
	})
})
