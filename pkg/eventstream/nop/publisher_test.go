package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/unistreamhq/unistream/pkg/eventstream"
	"github.com/unistreamhq/unistream/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher", func() {
		p := nop.NewPublisher()
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilStreamEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishStream(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilStreamEvent))
	})

	It("succeeds for non-nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishStream(context.Background(), &eventstream.StreamFinishedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		p := nop.NewPublisher()
		Expect(p.Close()).To(Succeed())
	})
})
