package mon

import "fmt"

// ContractViolation is the panic value raised when a caller breaks the
// monitor's API contract.
type ContractViolation struct {
	// Op names the operation whose contract was broken.
	Op string
	// Detail describes the violation.
	Detail string
}

func (v ContractViolation) Error() string {
	return fmt.Sprintf("mon: %s: %s", v.Op, v.Detail)
}

func violate(op, format string, args ...any) {
	panic(ContractViolation{Op: op, Detail: fmt.Sprintf(format, args...)})
}
