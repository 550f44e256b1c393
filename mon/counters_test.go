package mon_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mpsim/mon"
)

var _ = Describe("CPUCounters", func() {
	var (
		m *mon.Monitor
		c *mon.CPUCounters
	)

	BeforeEach(func() {
		m = mon.New(1, nameTable{"add", "load", "store"})
		c = m.CPU(0)
	})

	It("should start at zero", func() {
		Expect(c.TotalInstructions()).To(BeZero())
		Expect(c.Reads()).To(BeZero())
		Expect(c.Writes()).To(BeZero())
		for cat := mon.Category(0); cat < 3; cat++ {
			Expect(c.IssueCount(cat)).To(BeZero())
		}
	})

	It("should count issues per category", func() {
		c.RecordIssue(0)
		c.RecordIssue(0)
		c.RecordIssue(2)

		Expect(c.IssueCount(0)).To(Equal(uint64(2)))
		Expect(c.IssueCount(1)).To(Equal(uint64(0)))
		Expect(c.IssueCount(2)).To(Equal(uint64(1)))
	})

	It("should total every category", func() {
		counts := []int{7, 0, 13}
		var sum uint64
		for cat, n := range counts {
			for i := 0; i < n; i++ {
				c.RecordIssue(mon.Category(cat))
			}
			sum += uint64(n)
		}

		Expect(c.TotalInstructions()).To(Equal(sum))
		Expect(c.TotalInstructions()).To(Equal(
			c.IssueCount(0) + c.IssueCount(1) + c.IssueCount(2)))
	})

	It("should reflect the latest state on every total", func() {
		c.RecordIssue(1)
		Expect(c.TotalInstructions()).To(Equal(uint64(1)))
		c.RecordIssue(1)
		Expect(c.TotalInstructions()).To(Equal(uint64(2)))
	})

	It("should count one per access regardless of size", func() {
		c.RecordRead(0x1000, 0x1000, 8)
		c.RecordRead(0x2000, 0x2000, 1)
		c.RecordWrite(0x3000, 0x3000, 4)

		Expect(c.Reads()).To(Equal(uint64(2)))
		Expect(c.Writes()).To(Equal(uint64(1)))
	})

	It("should not count memory accesses as instructions", func() {
		c.RecordRead(0, 0, 8)
		c.RecordWrite(0, 0, 8)
		Expect(c.TotalInstructions()).To(BeZero())
	})

	It("should panic on a category past the table", func() {
		Expect(func() { c.RecordIssue(3) }).To(panicWithViolation("RecordIssue"))
	})

	It("should panic on a negative category", func() {
		Expect(func() { c.RecordIssue(-1) }).To(panicWithViolation("RecordIssue"))
	})

	It("should leave counters untouched after a rejected issue", func() {
		c.RecordIssue(1)
		Expect(func() { c.RecordIssue(42) }).To(Panic())
		Expect(c.TotalInstructions()).To(Equal(uint64(1)))
	})
})
