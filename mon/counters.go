package mon

// CPUCounters holds the counters of one simulated CPU.
//
// Only the emulation logic driving that CPU may write to it. No locking is
// done.
type CPUCounters struct {
	issue  []uint64
	reads  uint64
	writes uint64
}

func newCPUCounters(numCategories int) CPUCounters {
	return CPUCounters{issue: make([]uint64, numCategories)}
}

func (c *CPUCounters) checkCategory(op string, cat Category) {
	if cat < 0 || int(cat) >= len(c.issue) {
		violate(op, "category %d outside [0, %d)", cat, len(c.issue))
	}
}

// RecordIssue counts one issued instruction of the given category.
func (c *CPUCounters) RecordIssue(cat Category) {
	c.checkCategory("RecordIssue", cat)
	c.issue[cat]++
}

// RecordRead counts one data read. The addresses and the access size are
// accepted for symmetry with the memory subsystem; each access counts once
// whatever its size.
func (c *CPUCounters) RecordRead(ea, ra uint64, size int) {
	c.reads++
}

// RecordWrite counts one data write. See RecordRead.
func (c *CPUCounters) RecordWrite(ea, ra uint64, size int) {
	c.writes++
}

// IssueCount returns how many instructions of the category were issued.
func (c *CPUCounters) IssueCount(cat Category) uint64 {
	c.checkCategory("IssueCount", cat)
	return c.issue[cat]
}

// Reads returns the number of data reads.
func (c *CPUCounters) Reads() uint64 {
	return c.reads
}

// Writes returns the number of data writes.
func (c *CPUCounters) Writes() uint64 {
	return c.writes
}

// TotalInstructions sums the issue counts of every category.
func (c *CPUCounters) TotalInstructions() uint64 {
	var total uint64
	for _, n := range c.issue {
		total += n
	}

	return total
}

func (c *CPUCounters) reset() {
	for i := range c.issue {
		c.issue[i] = 0
	}
	c.reads = 0
	c.writes = 0
}
