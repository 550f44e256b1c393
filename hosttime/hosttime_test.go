package hosttime_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mpsim/hosttime"
	"github.com/sarchlab/mpsim/mon"
)

var _ = Describe("Source", func() {
	It("should report the seconds from its TimesFunc", func() {
		src := hosttime.NewSource(func() (float64, error) { return 2.5, nil })

		seconds, ok := src.ElapsedCPUSeconds()
		Expect(ok).To(BeTrue())
		Expect(seconds).To(Equal(2.5))
	})

	It("should report unavailable on error", func() {
		src := hosttime.NewSource(func() (float64, error) {
			return 0, errors.New("no rusage")
		})

		_, ok := src.ElapsedCPUSeconds()
		Expect(ok).To(BeFalse())
	})

	It("should feed the simulator speed line", func() {
		m := mon.New(1, nameTable{"add"})
		for i := 0; i < 10; i++ {
			m.CPU(0).RecordIssue(0)
		}
		src := hosttime.NewSource(func() (float64, error) { return 4, nil })

		lines := mon.Report(m, 2, src)
		Expect(lines[len(lines)-1]).To(Equal("Simulator speed was 3 instructions/second"))
	})
})

var _ = Describe("Resolve", func() {
	It("should return a source that never goes backwards", func() {
		src := hosttime.Resolve()
		if src == nil {
			Skip("host cannot report process CPU time")
		}

		first, ok := src.ElapsedCPUSeconds()
		Expect(ok).To(BeTrue())
		Expect(first).To(BeNumerically(">=", 0))

		second, ok := src.ElapsedCPUSeconds()
		Expect(ok).To(BeTrue())
		Expect(second).To(BeNumerically(">=", first))
	})
})

type nameTable []string

func (t nameTable) NumCategories() int { return len(t) }

func (t nameTable) CategoryName(c mon.Category) string { return t[c] }
