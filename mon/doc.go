// Package mon counts what every simulated CPU executes and reports it.
//
// A Monitor owns one CPUCounters per CPU. The emulation engine obtains the
// counters of a CPU once, then records each issued instruction and each data
// read or write against them. At a quiescence point the engine renders a
// report:
//
//	m := mon.New(2, insts.Categories)
//	c := m.CPU(0)
//	c.RecordIssue(mon.Category(insts.OpADD))
//	mon.Print(mon.WriterSink{W: os.Stdout}, m, 2, hosttime.Resolve())
//
// Misuse of the API (a bad CPU index, an unknown category, an invalid CPU
// count) panics with a ContractViolation. Those are defects in the caller and
// are not meant to be recovered from.
package mon
