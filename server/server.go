// Package server exposes a namespace over a local unix datagram socket.
//
// A request is one command of the grammar followed by a NUL byte. The reply
// is a little endian int32: the inumber for a successful lookup, 0 for any
// other success and a negative errno value on failure.
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// ReplySize is the fixed width of every response datagram
const ReplySize = 4

// EncodeReply packs a result code into a response datagram
func EncodeReply(code int32) []byte {
	buf := make([]byte, ReplySize)
	binary.LittleEndian.PutUint32(buf, uint32(code))
	return buf
}

// DecodeReply is the inverse of [EncodeReply]
func DecodeReply(buf []byte) (int32, error) {
	if len(buf) != ReplySize {
		return 0, fmt.Errorf("%w: reply of %d bytes", tecnicofs.ErrIO, len(buf))
	}
	return int32(binary.LittleEndian.Uint32(buf)), nil
}

// PeerStats counts the requests seen from one client endpoint
type PeerStats struct {
	Requests atomic.Uint64
	Failures atomic.Uint64
}

// Server answers datagram requests with cfg.NumThreads workers. Every
// command runs under one server wide mutex, whatever the namespace
// strategy.
type Server struct {
	cfg    *config.Config
	op     tecnicofs.Operator
	parser requests.Parser

	conn *net.UnixConn
	path string

	mu    sync.Mutex // serializes command application
	peers *xsync.Map[string, *PeerStats]
}

// New creates a Server for op. Call Listen before Serve.
func New(cfg *config.Config, op tecnicofs.Operator) *Server {
	return &Server{
		cfg:    cfg,
		op:     op,
		parser: requests.Parser{Allowed: requests.TransportOps, MaxInputSize: cfg.MaxInputSize},
		peers:  xsync.NewMap[string, *PeerStats](),
	}
}

// Listen binds the datagram socket at socketPath, replacing a stale socket
// file left by a previous run.
func (s *Server) Listen(socketPath string) error {
	logger := util.GetLogger("Server.Listen")

	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", socketPath, err)
	}
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: socketPath, Net: "unixgram"})
	if err != nil {
		return fmt.Errorf("bind %s: %w", socketPath, err)
	}
	s.conn = conn
	s.path = socketPath
	logger.Info().Str("socket", socketPath).Msg("Server listening")
	return nil
}

// Addr returns the bound socket path
func (s *Server) Addr() string {
	return s.path
}

// Serve runs the workers until ctx is cancelled or the socket is closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("server is not listening")
	}
	logger := util.GetLogger("Server.Serve")
	logger.Debug().Int("threads", s.cfg.NumThreads).Msg("Starting workers")

	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	group := errgroup.Group{}
	for i := range s.cfg.NumThreads {
		group.Go(func() error { return s.worker(i) })
	}
	err := group.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ServeAsync runs Serve in a goroutine; the channel yields its result
func (s *Server) ServeAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- s.Serve(ctx)
		close(done)
	}()

	return done
}

// Close closes the socket and removes its file
func (s *Server) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rerr := os.Remove(s.path); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = errors.Join(err, rerr)
	}
	return err
}

func (s *Server) worker(id int) error {
	logger := util.GetLogger("Server.worker").With().Int("worker", id).Logger()

	// one extra byte to notice oversized requests
	buf := make([]byte, s.cfg.MaxInputSize+2)
	for {
		n, addr, err := s.conn.ReadFromUnix(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error().Err(err).Msg("Failed to receive request")
			return err
		}

		code := s.handle(buf[:n], peerName(addr))
		if addr == nil || addr.Name == "" {
			logger.Warn().Int32("code", code).Msg("Request from unbound client; reply dropped")
			continue
		}
		if _, err := s.conn.WriteToUnix(EncodeReply(code), addr); err != nil {
			logger.Warn().Err(err).Str("peer", addr.Name).Msg("Failed to send reply")
		}
	}
}

// handle parses and applies one request. A malformed request only fails
// that request.
func (s *Server) handle(req []byte, peer string) int32 {
	logger := util.GetLogger("Server.handle")

	stats, _ := s.peers.LoadOrStore(peer, &PeerStats{})
	stats.Requests.Add(1)

	if i := bytes.IndexByte(req, 0); i >= 0 {
		req = req[:i]
	}
	cmd, err := s.parser.Parse(string(req))
	if err != nil {
		if errors.Is(err, requests.ErrNoCommand) {
			err = fmt.Errorf("%w: empty request", tecnicofs.ErrMalformed)
		}
		logger.Warn().Err(err).Str("peer", peer).Msg("Rejected request")
		stats.Failures.Add(1)
		return tecnicofs.CodeInval
	}

	s.mu.Lock()
	code, _ := requests.Apply(s.op, cmd)
	s.mu.Unlock()

	if code < 0 {
		stats.Failures.Add(1)
	}
	return code
}

// PeerCount is a point in time copy of [PeerStats]
type PeerCount struct {
	Requests uint64
	Failures uint64
}

// PeerCounts returns a snapshot of requests and failures per client endpoint
func (s *Server) PeerCounts() map[string]PeerCount {
	counts := make(map[string]PeerCount, s.peers.Size())
	s.peers.Range(func(peer string, stats *PeerStats) bool {
		counts[peer] = PeerCount{Requests: stats.Requests.Load(), Failures: stats.Failures.Load()}
		return true
	})
	return counts
}

func peerName(addr *net.UnixAddr) string {
	if addr == nil || addr.Name == "" {
		return "@unbound"
	}
	return addr.Name
}
