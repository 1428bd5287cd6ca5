package streams_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/streams"
)

var _ = Describe("SliceSource", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("yields chunks in order and then io.EOF", func() {
		src := streams.NewSliceSource(
			json.RawMessage(`{"a":1}`),
			json.RawMessage(`{"b":2}`),
		)

		chunk, err := src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(Equal(`{"a":1}`))

		chunk, err = src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(Equal(`{"b":2}`))

		_, err = src.Next(ctx)
		Expect(err).To(Equal(io.EOF))
	})

	It("marshals fixture values", func() {
		src := streams.NewValueSource(map[string]any{"id": "x"})

		chunk, err := src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(MatchJSON(`{"id":"x"}`))
	})

	It("respects context cancellation", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		src := streams.NewSliceSource(json.RawMessage(`{}`))
		_, err := src.Next(cancelled)
		Expect(err).To(MatchError(context.Canceled))
	})
})

var _ = Describe("IterSource", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	chunkSeq := func(chunks []string, failWith error) iter.Seq2[json.RawMessage, error] {
		return func(yield func(json.RawMessage, error) bool) {
			for _, c := range chunks {
				if !yield(json.RawMessage(c), nil) {
					return
				}
			}
			if failWith != nil {
				yield(nil, failWith)
			}
		}
	}

	It("pulls one chunk per call", func() {
		pulled := 0
		seq := func(yield func(json.RawMessage, error) bool) {
			for {
				pulled++
				if !yield(json.RawMessage(`{}`), nil) {
					return
				}
			}
		}
		src := streams.NewIterSource(seq)
		defer src.Close()

		_, err := src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pulled).To(Equal(1))
	})

	It("ends with io.EOF when the iterator is exhausted", func() {
		src := streams.NewIterSource(chunkSeq([]string{`{"a":1}`}, nil))

		chunk, err := src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(chunk)).To(Equal(`{"a":1}`))

		_, err = src.Next(ctx)
		Expect(err).To(Equal(io.EOF))
	})

	It("propagates iterator errors as stream errors", func() {
		boom := errors.New("upstream exploded")
		src := streams.NewIterSource(chunkSeq([]string{`{"a":1}`}, boom))

		_, err := src.Next(ctx)
		Expect(err).NotTo(HaveOccurred())

		_, err = src.Next(ctx)
		Expect(err).To(MatchError(boom))

		_, err = src.Next(ctx)
		Expect(err).To(Equal(io.EOF))
	})
})
