package mon

import (
	"fmt"
	"math"
)

// Report renders the performance report of m.
//
// With verbose > 1 the report breaks every CPU's count down by category and
// lists its data reads and writes; it also includes the simulator speed when
// timing reports a positive CPU time. timing may be nil.
func Report(m *Monitor, verbose int, timing TimingSource) []string {
	var lines Lines
	Print(&lines, m, verbose, timing)

	return lines
}

// Print writes the report of m to sink. See Report.
func Print(sink Sink, m *Monitor, verbose int, timing TimingSource) {
	var buf [CommaBufSize]byte

	nrCPUs := m.NumCPUs()
	lenNum := 0
	var total uint64

	for i := 0; i < nrCPUs; i++ {
		n := m.CPU(i).TotalInstructions()
		total += n

		if l := len(AddCommas(buf[:], n)); l > lenNum {
			lenNum = l
		}
	}

	lenCPU := len(fmt.Sprint(nrCPUs + 1))

	for i := 0; i < nrCPUs; i++ {
		c := m.CPU(i)

		if verbose > 1 {
			if i > 0 {
				sink.WriteLine("")
			}
			printBreakdown(sink, m.Categories(), c, i+1, lenCPU, lenNum)
		}

		sink.WriteLine(fmt.Sprintf("CPU #%*d executed %*s instructions in total.",
			lenCPU, i+1, lenNum, AddCommas(buf[:], c.TotalInstructions())))
	}

	if nrCPUs > 1 {
		sink.WriteLine("")
		sink.WriteLine(fmt.Sprintf("All CPUs executed %s instructions in total.",
			AddCommas(buf[:], total)))
	}

	if verbose > 1 && total > 0 {
		if ips := instructionsPerSecond(total, timing); ips > 0 {
			sink.WriteLine("")
			sink.WriteLine(fmt.Sprintf("Simulator speed was %s instructions/second",
				AddCommas(buf[:], ips)))
		}
	}
}

func printBreakdown(
	sink Sink,
	table CategoryTable,
	c *CPUCounters,
	cpuNum, lenCPU, lenNum int,
) {
	var buf [CommaBufSize]byte

	for cat := Category(0); int(cat) < table.NumCategories(); cat++ {
		n := c.IssueCount(cat)
		if n == 0 {
			continue
		}

		plural := "s"
		if n == 1 {
			plural = ""
		}

		sink.WriteLine(fmt.Sprintf("CPU #%*d executed %*s %s instruction%s.",
			lenCPU, cpuNum, lenNum, AddCommas(buf[:], n),
			table.CategoryName(cat), plural))
	}

	if c.Reads() > 0 {
		sink.WriteLine(fmt.Sprintf("CPU #%*d executed %*s data reads.",
			lenCPU, cpuNum, lenNum, AddCommas(buf[:], c.Reads())))
	}

	if c.Writes() > 0 {
		sink.WriteLine(fmt.Sprintf("CPU #%*d executed %*s data writes.",
			lenCPU, cpuNum, lenNum, AddCommas(buf[:], c.Writes())))
	}
}

// instructionsPerSecond rounds total/seconds to the nearest integer. It
// returns 0 when timing is absent or reports no elapsed time.
func instructionsPerSecond(total uint64, timing TimingSource) uint64 {
	if timing == nil {
		return 0
	}

	seconds, ok := timing.ElapsedCPUSeconds()
	if !ok || !(seconds > 0) || math.IsInf(seconds, 0) {
		return 0
	}

	ips := math.Floor(float64(total)/seconds + 0.5)
	if ips >= math.MaxUint64 {
		return math.MaxUint64
	}

	return uint64(ips)
}
