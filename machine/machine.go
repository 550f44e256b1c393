// Package machine runs a program on several simulated CPUs that share one
// monitor.
//
// CPUs advance in slices of a fixed number of instructions. Every CPU has
// a single writer for its counters and its own memory, so a slice may run
// the CPUs in parallel. The end of a slice is a quiescence point where the
// monitor may be read.
package machine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/mpsim/config"
	"github.com/sarchlab/mpsim/dcache"
	"github.com/sarchlab/mpsim/emu"
	"github.com/sarchlab/mpsim/insts"
	"github.com/sarchlab/mpsim/loader"
	"github.com/sarchlab/mpsim/mon"
)

// CheckpointFunc is called at the end of every cfg.CheckpointEvery-th
// slice. No CPU is executing while it runs.
type CheckpointFunc func(m *Machine, slice int)

// Option is a functional option for configuring the Machine.
type Option func(*Machine)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithCheckpoint registers fn as the checkpoint hook.
func WithCheckpoint(fn CheckpointFunc) Option {
	return func(m *Machine) {
		m.checkpoint = fn
	}
}

// WithClock sets the clock used to time the run. Default: clockz.RealClock.
func WithClock(clock clockz.Clock) Option {
	return func(m *Machine) {
		m.clock = clock
	}
}

type cpu struct {
	id      int
	emu     *emu.Emulator
	cache   *dcache.Cache
	limited bool
}

func (c *cpu) live() bool {
	return !c.emu.Halted() && !c.limited
}

// runSlice executes up to n instructions.
func (c *cpu) runSlice(n uint64) error {
	for i := uint64(0); i < n; i++ {
		result := c.emu.Step()
		switch {
		case errors.Is(result.Err, emu.ErrMaxInstructions):
			c.limited = true
			return nil
		case result.Err != nil:
			return fmt.Errorf("cpu %d: %w", c.id+1, result.Err)
		case result.Exited:
			return nil
		}
	}
	return nil
}

// Machine is a set of CPUs running the same program.
type Machine struct {
	cfg        *config.Config
	monitor    *mon.Monitor
	cpus       []*cpu
	logger     *zap.Logger
	clock      clockz.Clock
	checkpoint CheckpointFunc
}

// New builds a machine with cfg.NumCPUs CPUs. Every CPU gets a private
// copy of prog and starts at its entry point.
func New(cfg *config.Config, prog *loader.Program, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if prog == nil {
		return nil, errors.New("no program")
	}

	m := &Machine{
		cfg:     cfg.Clone(),
		monitor: mon.New(cfg.NumCPUs, insts.Categories),
		logger:  zap.NewNop(),
		clock:   clockz.RealClock,
	}

	for _, opt := range opts {
		opt(m)
	}

	for i := 0; i < cfg.NumCPUs; i++ {
		mem := emu.NewMemory()
		prog.LoadInto(mem)

		c := &cpu{id: i}
		emuOpts := []emu.EmulatorOption{
			emu.WithMemory(mem),
			emu.WithMonitor(m.monitor.CPU(i)),
			emu.WithStackPointer(prog.InitialSP),
			emu.WithMaxInstructions(cfg.MaxInstructions),
		}
		if cfg.DataCache.Enabled {
			c.cache = dcache.New(cfg.DataCache.Config)
			emuOpts = append(emuOpts, emu.WithDataCache(c.cache))
		}

		c.emu = emu.NewEmulator(emuOpts...)
		c.emu.SetPC(prog.EntryPoint)
		m.cpus = append(m.cpus, c)
	}

	return m, nil
}

// Monitor returns the monitor that counts for every CPU.
func (m *Machine) Monitor() *mon.Monitor {
	return m.monitor
}

// ExitCodes returns the exit code of every CPU, -1 for a CPU that has not
// exited.
func (m *Machine) ExitCodes() []int64 {
	codes := make([]int64, len(m.cpus))
	for i, c := range m.cpus {
		codes[i] = -1
		if c.emu.Halted() {
			codes[i] = c.emu.ExitCode()
		}
	}
	return codes
}

// CacheStats returns the data cache statistics of every CPU, or nil when
// the data cache is disabled.
func (m *Machine) CacheStats() []dcache.Statistics {
	if !m.cfg.DataCache.Enabled {
		return nil
	}

	stats := make([]dcache.Statistics, len(m.cpus))
	for i, c := range m.cpus {
		stats[i] = c.cache.Stats()
	}
	return stats
}

// Run executes slices until every CPU has exited or reached the
// instruction limit. It stops at the first CPU error, or at a slice
// boundary once ctx is done.
func (m *Machine) Run(ctx context.Context) error {
	start := m.clock.Now()

	slice := 0
	for {
		live := m.liveCPUs()
		if len(live) == 0 {
			break
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := m.runSlice(ctx, live); err != nil {
			m.logger.Error("cpu failed", zap.Int("slice", slice+1), zap.Error(err))
			return err
		}
		slice++

		if every := m.cfg.CheckpointEvery; every > 0 && slice%every == 0 {
			m.logger.Debug("checkpoint",
				zap.Int("slice", slice),
				zap.Int("live_cpus", len(m.liveCPUs())),
				zap.Uint64("instructions", m.monitor.TotalInstructions()),
			)
			if m.checkpoint != nil {
				m.checkpoint(m, slice)
			}
		}
	}

	m.logger.Info("run complete",
		zap.Int("cpus", len(m.cpus)),
		zap.Int("slices", slice),
		zap.Uint64("instructions", m.monitor.TotalInstructions()),
		zap.Duration("wall_time", m.clock.Now().Sub(start)),
	)

	return nil
}

func (m *Machine) liveCPUs() []*cpu {
	var live []*cpu
	for _, c := range m.cpus {
		if c.live() {
			live = append(live, c)
		}
	}
	return live
}

func (m *Machine) runSlice(ctx context.Context, live []*cpu) error {
	if !m.cfg.Parallel {
		for _, c := range live {
			if err := c.runSlice(m.cfg.SliceSize); err != nil {
				return err
			}
		}
		return nil
	}

	return forEachParallel(ctx, len(live), func(i int) error {
		return live[i].runSlice(m.cfg.SliceSize)
	})
}

// forEachParallel calls fn for every index in [0, n) on its own goroutine
// and waits for all of them. A panic in fn is raised again on the calling
// goroutine once every goroutine has returned, so callers see the same
// panic value as in a serial run.
func forEachParallel(ctx context.Context, n int, fn func(i int) error) error {
	var (
		mu        sync.Mutex
		recovered any
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if recovered == nil {
						recovered = r
					}
					mu.Unlock()
					err = fmt.Errorf("goroutine %d panicked: %v", i, r)
				}
			}()

			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}

	err := g.Wait()
	if recovered != nil {
		panic(recovered)
	}
	return err
}
