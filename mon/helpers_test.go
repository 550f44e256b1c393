package mon_test

import (
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"

	"github.com/sarchlab/mpsim/mon"
)

// nameTable is a category table backed by a list of names.
type nameTable []string

func (t nameTable) NumCategories() int {
	return len(t)
}

func (t nameTable) CategoryName(c mon.Category) string {
	return t[c]
}

// fixedTiming reports a constant CPU time.
type fixedTiming struct {
	seconds float64
	ok      bool
}

func (f fixedTiming) ElapsedCPUSeconds() (float64, bool) {
	return f.seconds, f.ok
}

func panicWithViolation(op string) types.GomegaMatcher {
	return PanicWith(And(
		BeAssignableToTypeOf(mon.ContractViolation{}),
		HaveField("Op", op),
	))
}
