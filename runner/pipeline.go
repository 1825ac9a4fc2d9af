package runner

import (
	"context"
	"io"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/queue"
	"github.com/brettbedarf/tecnicofs/requests"
	"golang.org/x/sync/errgroup"
)

// Pipeline streams commands from a reader into a bounded queue drained by
// cfg.NumThreads workers. A single worker sees commands in input order;
// effects of different workers may interleave.
type Pipeline struct {
	cfg *config.Config
	op  tecnicofs.Operator
}

func NewPipeline(cfg *config.Config, op tecnicofs.Operator) *Pipeline {
	return &Pipeline{cfg: cfg, op: op}
}

// Parser returns the parser matching the queue grammar
func (p *Pipeline) Parser() requests.Parser {
	return requests.Parser{Allowed: requests.QueueOps, MaxInputSize: p.cfg.MaxInputSize}
}

// Run produces from r until EOF and returns once the queue has drained.
// A malformed line stops the producer and is returned after the workers
// finish what was already queued.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	logger := util.GetLogger("Pipeline.Run")

	q := queue.New[requests.Command](p.cfg.QueueCapacity)
	group, groupCtx := errgroup.WithContext(ctx)

	// wake blocked workers and the producer on cancellation
	stop := context.AfterFunc(groupCtx, q.Close)
	defer stop()

	group.Go(func() error {
		defer q.Close()
		produced := 0
		err := scanCommands(r, p.Parser(), func(cmd requests.Command) error {
			if !q.Put(cmd) {
				return groupCtx.Err()
			}
			queueDepth.Set(float64(q.Len()))
			produced++
			return nil
		})
		logger.Debug().Int("commands", produced).Msg("Producer finished")
		return err
	})

	for range p.cfg.NumThreads {
		group.Go(func() error {
			for {
				cmd, ok := q.Get()
				if !ok {
					return nil
				}
				queueDepth.Set(float64(q.Len()))
				if err := applyOne(p.op, cmd); err != nil {
					return err
				}
			}
		})
	}
	return group.Wait()
}
