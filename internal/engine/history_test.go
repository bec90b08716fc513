package engine

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("readingRing", func() {
	point := func(i int) DataPoint {
		return DataPoint{
			Timestamp: time.Date(2026, 3, 1, 12, 0, i, 0, time.UTC),
			Value:     float64(i),
		}
	}

	It("starts empty", func() {
		r := newReadingRing(4)
		Expect(r.Len()).To(Equal(0))
		_, ok := r.Oldest()
		Expect(ok).To(BeFalse())
		Expect(r.Snapshot()).To(BeEmpty())
	})

	It("appends without eviction until full", func() {
		r := newReadingRing(3)
		Expect(r.Append(point(1))).To(BeFalse())
		Expect(r.Append(point(2))).To(BeFalse())
		Expect(r.Append(point(3))).To(BeFalse())
		Expect(r.Len()).To(Equal(3))

		oldest, ok := r.Oldest()
		Expect(ok).To(BeTrue())
		Expect(oldest.Value).To(Equal(1.0))
	})

	It("evicts the oldest entry once full", func() {
		r := newReadingRing(3)
		for i := 1; i <= 3; i++ {
			r.Append(point(i))
		}
		Expect(r.Append(point(4))).To(BeTrue())
		Expect(r.Len()).To(Equal(3))

		oldest, _ := r.Oldest()
		Expect(oldest.Value).To(Equal(2.0))
	})

	It("snapshots in insertion order across the wrap point", func() {
		r := newReadingRing(3)
		for i := 1; i <= 5; i++ {
			r.Append(point(i))
		}

		snap := r.Snapshot()
		Expect(snap).To(HaveLen(3))
		Expect(snap[0].Value).To(Equal(3.0))
		Expect(snap[1].Value).To(Equal(4.0))
		Expect(snap[2].Value).To(Equal(5.0))
	})

	It("returns an independent snapshot", func() {
		r := newReadingRing(3)
		r.Append(point(1))

		snap := r.Snapshot()
		snap[0].Value = 99

		again := r.Snapshot()
		Expect(again[0].Value).To(Equal(1.0))
	})
})
