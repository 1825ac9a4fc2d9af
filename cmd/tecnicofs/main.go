package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/filesystem"
	"github.com/brettbedarf/tecnicofs/fuse"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/brettbedarf/tecnicofs/runner"
	"github.com/brettbedarf/tecnicofs/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

const usageText = `Usage: tecnicofs [flags] <command> <args>

Commands:
  batch <inputfile> <outputfile> <numthreads> <synchstrategy>
  queue <inputfile> <outputfile> <numthreads>
  serve <numthreads> <socketname>
  mount <mountpoint>

Flags:
`

func main() {
	var (
		configPath string
		verbose    int
		umount     bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	pflag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	pflag.BoolVarP(&umount, "umount", "u", false,
		"Unmount the mount point first if needed. Useful for debuggers that don't exit properly.")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config %s: %v\n", configPath, err)
			os.Exit(1)
		}
	}
	if pflag.CommandLine.Changed("verbose") {
		cfg.LogLvl = util.LevelFromVerbose(verbose)
	}
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	args := pflag.Args()
	if len(args) == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg, args, umount)
	stop()
	if err != nil {
		logger.Error().Err(err).Str("command", args[0]).Msg("TecnicoFS failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, args []string, umount bool) error {
	cmd, args := args[0], args[1:]
	switch cmd {
	case "batch":
		if len(args) != 4 {
			return usageError(cmd)
		}
		threads, err := parseThreads(args[2])
		if err != nil {
			return err
		}
		strategy, err := config.ParseStrategy(args[3])
		if err != nil {
			return err
		}
		cfg.NumThreads, cfg.Strategy = threads, strategy
		return runBatch(ctx, cfg, args[0], args[1])
	case "queue":
		if len(args) != 3 {
			return usageError(cmd)
		}
		threads, err := parseThreads(args[2])
		if err != nil {
			return err
		}
		// the queue always runs with per-node locking
		cfg.NumThreads, cfg.Strategy = threads, config.PerNodeLock
		return runQueue(ctx, cfg, args[0], args[1])
	case "serve":
		if len(args) != 2 {
			return usageError(cmd)
		}
		threads, err := parseThreads(args[0])
		if err != nil {
			return err
		}
		cfg.NumThreads = threads
		return runServe(ctx, cfg, args[1])
	case "mount":
		if len(args) != 1 {
			return usageError(cmd)
		}
		if umount {
			// not being mounted is fine
			exec.Command("fusermount", "-u", args[0]).Run() // nolint:errcheck
		}
		return runMount(ctx, cfg, args[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usageError(cmd string) error {
	return fmt.Errorf("wrong number of arguments for %s; see --help", cmd)
}

func parseThreads(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid number of threads: %q", s)
	}
	return n, nil
}

// setup validates cfg and builds the instrumented namespace every command
// runs against
func setup(cfg *config.Config) (*filesystem.FileSystem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	runner.RegisterMetrics()
	return filesystem.NewFS(cfg)
}

func finish(start time.Time) {
	logger := util.GetLogger("main")
	runner.LogMetricsSummary(prometheus.DefaultGatherer)
	logger.Info().Msgf("TecnicoFS completed in %.4f seconds", time.Since(start).Seconds())
}

func runBatch(ctx context.Context, cfg *config.Config, input, output string) error {
	fs, err := setup(cfg)
	if err != nil {
		return err
	}
	defer fs.Destroy()
	ns := filesystem.NewMetricsNamespace(fs)

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	batch := runner.NewBatch(cfg, ns)
	cmds, err := batch.Load(f)
	if err != nil {
		return fmt.Errorf("load %s: %w", input, err)
	}

	start := time.Now()
	if err := batch.Run(ctx, cmds); err != nil {
		return err
	}
	if err := requests.PrintToFile(ns, output); err != nil {
		return err
	}
	finish(start)
	return nil
}

func runQueue(ctx context.Context, cfg *config.Config, input, output string) error {
	fs, err := setup(cfg)
	if err != nil {
		return err
	}
	defer fs.Destroy()
	ns := filesystem.NewMetricsNamespace(fs)

	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	if err := runner.NewPipeline(cfg, ns).Run(ctx, f); err != nil {
		return fmt.Errorf("process %s: %w", input, err)
	}
	if err := requests.PrintToFile(ns, output); err != nil {
		return err
	}
	finish(start)
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, socketPath string) error {
	logger := util.GetLogger("main")

	fs, err := setup(cfg)
	if err != nil {
		return err
	}
	defer fs.Destroy()

	srv := server.New(cfg, filesystem.NewMetricsNamespace(fs))
	if err := srv.Listen(socketPath); err != nil {
		return err
	}
	defer srv.Close()

	start := time.Now()
	err = srv.Serve(ctx)
	for peer, c := range srv.PeerCounts() {
		logger.Info().Str("peer", peer).Uint64("requests", c.Requests).Uint64("failures", c.Failures).Msg("Client summary")
	}
	if err != nil {
		return err
	}
	finish(start)
	return nil
}

func runMount(ctx context.Context, cfg *config.Config, mountPoint string) error {
	logger := util.GetLogger("main")

	fs, err := setup(cfg)
	if err != nil {
		return err
	}
	defer fs.Destroy()

	srv, err := fuse.Mount(cfg, filesystem.NewMetricsNamespace(fs), mountPoint)
	if err != nil {
		return err
	}
	start := time.Now()

	unmounted := make(chan struct{})
	go func() {
		srv.Wait()
		close(unmounted)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Received signal, unmounting filesystem")
		if err := srv.Unmount(); err != nil {
			return err
		}
	case <-unmounted:
		logger.Info().Msg("Filesystem unmounted externally")
	}
	finish(start)
	return nil
}
