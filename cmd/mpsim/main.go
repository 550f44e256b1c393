// Package main provides the entry point for mpsim.
// mpsim runs an ARM64 program on several simulated CPUs and reports how
// many instructions of each kind every CPU executed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/mpsim/config"
	"github.com/sarchlab/mpsim/hosttime"
	"github.com/sarchlab/mpsim/loader"
	"github.com/sarchlab/mpsim/machine"
	"github.com/sarchlab/mpsim/metrics"
	"github.com/sarchlab/mpsim/mon"
)

// errUsage reports a command line without a program.
var errUsage = errors.New("usage: mpsim [options] <program>")

type options struct {
	cfg         *config.Config
	programPath string
	raw         bool
	base        uint64
	debug       bool
}

// parseFlags reads the command line. Flags that are set override the
// values of the config file.
func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("mpsim", pflag.ContinueOnError)

	configPath := fs.String("config", "", "Path to run configuration JSON file")
	cpus := fs.IntP("cpus", "n", 1, "Number of simulated CPUs")
	verbose := fs.CountP("verbose", "v", "Report detail; repeat for a per-category breakdown")
	maxInsts := fs.Uint64("max-insts", 0, "Instruction limit per CPU (0 = none)")
	slice := fs.Uint64("slice", 10000, "Instructions per CPU between quiescence points")
	checkpoint := fs.Int("checkpoint", 0, "Interim report every N slices (0 = none)")
	parallel := fs.Bool("parallel", false, "Run the CPUs of a slice on separate goroutines")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")

	opts := &options{}
	fs.BoolVar(&opts.raw, "raw", false, "Treat the program as a flat binary")
	fs.Uint64Var(&opts.base, "base", 0x1000, "Load and entry address of a flat binary")
	fs.BoolVarP(&opts.debug, "debug", "d", false, "Development logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, errUsage
	}
	opts.programPath = fs.Arg(0)

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
	}

	if fs.Changed("cpus") {
		cfg.NumCPUs = *cpus
	}
	if fs.Changed("verbose") {
		cfg.Verbosity = *verbose
	}
	if fs.Changed("max-insts") {
		cfg.MaxInstructions = *maxInsts
	}
	if fs.Changed("slice") {
		cfg.SliceSize = *slice
	}
	if fs.Changed("checkpoint") {
		cfg.CheckpointEvery = *checkpoint
	}
	if fs.Changed("parallel") {
		cfg.Parallel = *parallel
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = *metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts.cfg = cfg

	return opts, nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// run executes the program and writes the report to stdout. It returns
// the exit code of CPU 0, or 1 when a CPU failed.
func run(
	ctx context.Context,
	opts *options,
	stdout io.Writer,
	logger *zap.Logger,
	timing mon.TimingSource,
) int {
	cfg := opts.cfg

	var prog *loader.Program
	var err error
	if opts.raw {
		prog, err = loader.LoadRaw(opts.programPath, opts.base)
	} else {
		prog, err = loader.Load(opts.programPath)
	}
	if err != nil {
		logger.Error("loading program", zap.String("path", opts.programPath), zap.Error(err))
		return 1
	}

	logger.Debug("program loaded",
		zap.String("path", opts.programPath),
		zap.Uint64("entry", prog.EntryPoint),
		zap.Int("segments", len(prog.Segments)),
	)

	exporter := metrics.NewExporter("mpsim")

	m, err := machine.New(cfg, prog,
		machine.WithLogger(logger),
		machine.WithCheckpoint(func(m *machine.Machine, slice int) {
			exporter.Update(m.Monitor(), m.CacheStats())
			mon.Print(mon.ZapSink{Logger: logger.With(zap.Int("slice", slice))},
				m.Monitor(), cfg.Verbosity, nil)
		}),
	)
	if err != nil {
		logger.Error("building machine", zap.Error(err))
		return 1
	}

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, exporter, logger)
		defer stop()
	}

	runErr := m.Run(ctx)

	exporter.Update(m.Monitor(), m.CacheStats())
	mon.Print(mon.WriterSink{W: stdout}, m.Monitor(), cfg.Verbosity, timing)

	if runErr != nil {
		logger.Error("run failed", zap.Error(runErr))
		return 1
	}

	code := m.ExitCodes()[0]
	if code < 0 {
		return 0
	}
	return int(code)
}

// serveMetrics serves exporter on addr until the returned function is
// called.
func serveMetrics(addr string, exporter *metrics.Exporter, logger *zap.Logger) func() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(exporter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.String("addr", addr), zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func realMain() int {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	defer func() {
		if r := recover(); r != nil {
			if v, ok := r.(mon.ContractViolation); ok {
				logger.Fatal("contract violation", zap.String("op", v.Op), zap.String("detail", v.Detail))
			}
			panic(r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return run(ctx, opts, os.Stdout, logger, hosttime.Resolve())
}

func main() {
	os.Exit(realMain())
}
