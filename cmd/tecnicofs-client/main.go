package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/client"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/spf13/pflag"
)

func main() {
	var (
		configPath string
		verbose    int
		timeout    time.Duration
	)
	pflag.StringVarP(&configPath, "config", "c", "", "Path to a YAML or JSON config file")
	pflag.IntVarP(&verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	pflag.DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Per request timeout; 0 waits forever")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tecnicofs-client [flags] <inputfile> <server_socket>")
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

	if pflag.NArg() != 2 {
		pflag.Usage()
		os.Exit(2)
	}
	input, serverPath := pflag.Arg(0), pflag.Arg(1)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg, input, serverPath, timeout, os.Stdout)
	stop()
	if err != nil {
		logger.Error().Err(err).Str("input", input).Msg("Client failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, input, serverPath string, timeout time.Duration, out io.Writer) (err error) {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	c, err := client.Mount(cfg, serverPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Unmount())
	}()

	return sendCommands(ctx, c, f, requests.Parser{Allowed: requests.TransportOps, MaxInputSize: cfg.MaxInputSize}, timeout, out)
}

// sendCommands runs every command of r as one round trip and prints the
// outcome. Failed operations are reported, not returned.
func sendCommands(ctx context.Context, c *client.Client, r io.Reader, parser requests.Parser, timeout time.Duration, out io.Writer) error {
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		cmd, err := parser.Parse(scanner.Text())
		if errors.Is(err, requests.ErrNoCommand) {
			continue
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		reqCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			reqCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		code, err := c.Do(reqCtx, cmd)
		cancel()
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		fmt.Fprintf(out, "%s: %s\n", cmd, describe(cmd, code))
	}
	return scanner.Err()
}

func describe(cmd requests.Command, code int32) string {
	if err := tecnicofs.ErrorFromCode(code); err != nil {
		return fmt.Sprintf("failed (%d: %v)", code, err)
	}
	if cmd.Op == requests.OpLookup {
		return fmt.Sprintf("found inumber %d", code)
	}
	return "ok"
}
