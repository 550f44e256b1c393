package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mpsim/insts"
	"github.com/sarchlab/mpsim/mon"
)

var _ = Describe("Categories", func() {
	It("should have one category per opcode", func() {
		Expect(insts.Categories.NumCategories()).To(Equal(insts.NumOps))
		Expect(int(insts.OpSVC)).To(Equal(insts.NumOps - 1))
	})

	It("should name categories by mnemonic", func() {
		Expect(insts.Categories.CategoryName(insts.OpADD.Category())).To(Equal("add"))
		Expect(insts.Categories.CategoryName(insts.OpBCond.Category())).To(Equal("b.cond"))
		Expect(insts.Categories.CategoryName(insts.OpLDR.Category())).To(Equal("ldr"))
	})

	It("should give every opcode a distinct name", func() {
		seen := map[string]bool{}
		for op := insts.OpUnknown; int(op) < insts.NumOps; op++ {
			name := op.String()
			Expect(name).NotTo(BeEmpty())
			Expect(seen).NotTo(HaveKey(name))
			seen[name] = true
		}
	})

	It("should name out-of-range opcodes unknown", func() {
		Expect(insts.Op(999).String()).To(Equal("unknown"))
	})

	It("should be accepted by the monitor", func() {
		m := mon.New(1, insts.Categories)
		m.CPU(0).RecordIssue(insts.OpSTR.Category())

		Expect(mon.Report(m, 2, nil)).To(ContainElement(
			"CPU #1 executed 1 str instruction."))
	})
})
