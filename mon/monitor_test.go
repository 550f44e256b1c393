package mon_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mpsim/mon"
)

var _ = Describe("Monitor", func() {
	table := nameTable{"add", "load"}

	Describe("New", func() {
		It("should create the requested number of CPUs", func() {
			m := mon.New(4, table)
			Expect(m.NumCPUs()).To(Equal(4))
			Expect(m.Categories()).To(Equal(mon.CategoryTable(table)))
		})

		It("should accept the maximum CPU count", func() {
			m := mon.New(mon.MaxCPUs, table)
			Expect(m.NumCPUs()).To(Equal(mon.MaxCPUs))
		})

		It("should reject zero CPUs", func() {
			Expect(func() { mon.New(0, table) }).To(panicWithViolation("New"))
		})

		It("should reject a negative CPU count", func() {
			Expect(func() { mon.New(-2, table) }).To(panicWithViolation("New"))
		})

		It("should reject more CPUs than it can hold", func() {
			Expect(func() { mon.New(mon.MaxCPUs+1, table) }).
				To(panicWithViolation("New"))
		})

		It("should reject a missing category table", func() {
			Expect(func() { mon.New(1, nil) }).To(panicWithViolation("New"))
		})
	})

	Describe("CPU", func() {
		It("should return the same counters for the same index", func() {
			m := mon.New(2, table)
			a := m.CPU(1)
			b := m.CPU(1)

			a.RecordIssue(0)
			Expect(b).To(BeIdenticalTo(a))
			Expect(b.IssueCount(0)).To(Equal(uint64(1)))
		})

		It("should keep CPUs independent", func() {
			m := mon.New(2, table)
			m.CPU(0).RecordIssue(1)

			Expect(m.CPU(0).TotalInstructions()).To(Equal(uint64(1)))
			Expect(m.CPU(1).TotalInstructions()).To(BeZero())
		})

		It("should reject every index outside the active range", func() {
			for n := 1; n <= mon.MaxCPUs; n++ {
				m := mon.New(n, table)
				for _, i := range []int{-1, n, n + 1, mon.MaxCPUs} {
					idx := i
					Expect(func() { m.CPU(idx) }).To(panicWithViolation("CPU"),
						"nr_cpus=%d index=%d", n, idx)
				}
				Expect(func() { m.CPU(n - 1) }).NotTo(Panic())
			}
		})
	})

	Describe("Reset", func() {
		It("should zero every counter", func() {
			m := mon.New(2, table)
			m.CPU(0).RecordIssue(0)
			m.CPU(1).RecordRead(0, 0, 4)
			m.CPU(1).RecordWrite(0, 0, 4)

			m.Reset()

			Expect(m.TotalInstructions()).To(BeZero())
			Expect(m.CPU(1).Reads()).To(BeZero())
			Expect(m.CPU(1).Writes()).To(BeZero())
		})
	})

	It("should total every CPU", func() {
		m := mon.New(3, table)
		m.CPU(0).RecordIssue(0)
		m.CPU(2).RecordIssue(1)
		m.CPU(2).RecordIssue(1)

		Expect(m.TotalInstructions()).To(Equal(uint64(3)))
	})

	It("should describe a violation", func() {
		v := mon.ContractViolation{Op: "CPU", Detail: "cpu index 3 outside [0, 2)"}
		Expect(v.Error()).To(Equal("mon: CPU: cpu index 3 outside [0, 2)"))
	})
})
