// Package runner holds the two file driven front ends: the batch runner,
// which loads every command before applying them, and the pipeline, which
// streams commands through a bounded queue to the workers.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"golang.org/x/sync/errgroup"
)

// ErrTooManyCommands is returned when the input holds more commands than the
// batch buffer accepts
var ErrTooManyCommands = errors.New("out-of-capacity command buffer")

// LoadCommands reads every command from r. Blank and comment lines are
// skipped; the first malformed line aborts the load.
func LoadCommands(r io.Reader, parser requests.Parser, maxCommands int) ([]requests.Command, error) {
	var cmds []requests.Command
	err := scanCommands(r, parser, func(cmd requests.Command) error {
		if len(cmds) >= maxCommands {
			return fmt.Errorf("%w: limit is %d", ErrTooManyCommands, maxCommands)
		}
		cmds = append(cmds, cmd)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

// scanCommands calls fn for every command line in r, in order
func scanCommands(r io.Reader, parser requests.Parser, fn func(requests.Command) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		cmd, err := parser.Parse(scanner.Text())
		if errors.Is(err, requests.ErrNoCommand) {
			continue
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(cmd); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read commands: %w", err)
	}
	return nil
}

// Batch applies a preloaded list of commands with a fixed pool of workers.
// Workers take the next unclaimed command until the list is exhausted.
type Batch struct {
	cfg *config.Config
	op  tecnicofs.Operator
}

func NewBatch(cfg *config.Config, op tecnicofs.Operator) *Batch {
	return &Batch{cfg: cfg, op: op}
}

// Parser returns the parser matching the batch grammar
func (b *Batch) Parser() requests.Parser {
	return requests.Parser{Allowed: requests.BatchOps, MaxInputSize: b.cfg.MaxInputSize}
}

// Load reads the command file for a later Run
func (b *Batch) Load(r io.Reader) ([]requests.Command, error) {
	return LoadCommands(r, b.Parser(), b.cfg.MaxCommands)
}

// Run applies cmds using cfg.NumThreads workers and returns once every
// command was applied or ctx was cancelled. Operation failures are logged
// and do not stop the run.
func (b *Batch) Run(ctx context.Context, cmds []requests.Command) error {
	logger := util.GetLogger("Batch.Run")
	logger.Debug().Int("commands", len(cmds)).Int("threads", b.cfg.NumThreads).Msg("Applying commands")

	var next atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	for range b.cfg.NumThreads {
		group.Go(func() error {
			for groupCtx.Err() == nil {
				i := next.Add(1) - 1
				if i >= int64(len(cmds)) {
					return nil
				}
				if err := applyOne(b.op, cmds[i]); err != nil {
					return err
				}
			}
			return groupCtx.Err()
		})
	}
	return group.Wait()
}

// applyOne runs one command and only reports errors that make the
// remaining input meaningless
func applyOne(op tecnicofs.Operator, cmd requests.Command) error {
	commandsApplied.Inc()
	_, err := requests.Apply(op, cmd)
	if errors.Is(err, tecnicofs.ErrMalformed) {
		return err
	}
	return nil
}
