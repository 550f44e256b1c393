package mon

// Category identifies an instruction category. Valid values are
// 0 <= c < CategoryTable.NumCategories().
type Category int

// CategoryTable describes the instruction categories of the emulation
// engine. It must not change while a Monitor uses it.
type CategoryTable interface {
	NumCategories() int
	CategoryName(c Category) string
}

// TimingSource reports how much host CPU time the simulation has used. The
// second result is false when the host cannot tell.
type TimingSource interface {
	ElapsedCPUSeconds() (float64, bool)
}
