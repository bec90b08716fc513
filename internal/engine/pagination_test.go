package engine

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("paginate", func() {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	It("slices the requested page", func() {
		page, info := paginate(items, 2, 3)
		Expect(page).To(Equal([]int{4, 5, 6}))
		Expect(info.CurrentPage).To(Equal(2))
		Expect(info.TotalPages).To(Equal(3))
		Expect(info.TotalItems).To(Equal(7))
		Expect(info.ItemsPerPage).To(Equal(3))
		Expect(info.HasNext).To(BeTrue())
		Expect(info.HasPrev).To(BeTrue())
	})

	It("reports no next page on the last page", func() {
		page, info := paginate(items, 3, 3)
		Expect(page).To(Equal([]int{7}))
		Expect(info.HasNext).To(BeFalse())
		Expect(info.HasPrev).To(BeTrue())
	})

	It("returns an empty slice past the end", func() {
		page, info := paginate(items, 9, 3)
		Expect(page).To(BeEmpty())
		Expect(info.CurrentPage).To(Equal(9))
		Expect(info.HasNext).To(BeFalse())
	})

	It("clamps a non-positive page to 1", func() {
		page, info := paginate(items, 0, 3)
		Expect(page).To(Equal([]int{1, 2, 3}))
		Expect(info.CurrentPage).To(Equal(1))
		Expect(info.HasPrev).To(BeFalse())
	})

	It("falls back to the default limit", func() {
		page, info := paginate(items, 1, 0)
		Expect(page).To(HaveLen(7))
		Expect(info.ItemsPerPage).To(Equal(DefaultPageLimit))
		Expect(info.TotalPages).To(Equal(1))
	})

	It("handles an empty input", func() {
		page, info := paginate([]int{}, 1, 5)
		Expect(page).To(BeEmpty())
		Expect(info.TotalItems).To(Equal(0))
		Expect(info.TotalPages).To(Equal(0))
		Expect(info.HasNext).To(BeFalse())
		Expect(info.HasPrev).To(BeFalse())
	})
})
