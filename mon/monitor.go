package mon

// MaxCPUs is the largest number of CPUs a Monitor can track.
const MaxCPUs = 32

// Monitor owns the counters of every simulated CPU.
type Monitor struct {
	table CategoryTable
	cpus  []CPUCounters
}

// New creates a Monitor for nrCPUs CPUs with every counter at zero.
// nrCPUs must be in [1, MaxCPUs].
func New(nrCPUs int, table CategoryTable) *Monitor {
	if nrCPUs < 1 || nrCPUs > MaxCPUs {
		violate("New", "cpu count %d outside [1, %d]", nrCPUs, MaxCPUs)
	}
	if table == nil {
		violate("New", "no category table")
	}

	n := table.NumCategories()
	if n < 0 {
		violate("New", "category table reports %d categories", n)
	}

	m := &Monitor{
		table: table,
		cpus:  make([]CPUCounters, nrCPUs),
	}
	for i := range m.cpus {
		m.cpus[i] = newCPUCounters(n)
	}

	return m
}

// CPU returns the counters of the CPU with index i. The same index always
// yields the same counters.
func (m *Monitor) CPU(i int) *CPUCounters {
	if i < 0 || i >= len(m.cpus) {
		violate("CPU", "cpu index %d outside [0, %d)", i, len(m.cpus))
	}

	return &m.cpus[i]
}

// NumCPUs returns the number of CPUs being monitored.
func (m *Monitor) NumCPUs() int {
	return len(m.cpus)
}

// Categories returns the category table the monitor was created with.
func (m *Monitor) Categories() CategoryTable {
	return m.table
}

// Reset zeroes every counter so the monitor can be used for a new run.
// It must not be called while any CPU is running.
func (m *Monitor) Reset() {
	for i := range m.cpus {
		m.cpus[i].reset()
	}
}

// TotalInstructions sums the instructions issued by every CPU.
func (m *Monitor) TotalInstructions() uint64 {
	var total uint64
	for i := range m.cpus {
		total += m.cpus[i].TotalInstructions()
	}

	return total
}
