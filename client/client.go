// Package client talks to a TecnicoFS server over its datagram socket.
// Every call is one request and one reply.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	"github.com/brettbedarf/tecnicofs/requests"
	"github.com/brettbedarf/tecnicofs/server"
	"github.com/google/uuid"
)

// Client owns one ephemeral endpoint bound next to the configured socket
// directory. Calls are serialized so each reply matches its request.
type Client struct {
	mu    sync.Mutex
	conn  *net.UnixConn
	local string
}

// Mount binds a fresh client endpoint and connects it to the server
// socket at serverPath.
func Mount(cfg *config.Config, serverPath string) (*Client, error) {
	logger := util.GetLogger("Client.Mount")

	local := filepath.Join(cfg.ClientSocketDir, "tfs-client-"+uuid.NewString()+".sock")
	conn, err := net.DialUnix("unixgram",
		&net.UnixAddr{Name: local, Net: "unixgram"},
		&net.UnixAddr{Name: serverPath, Net: "unixgram"})
	if err != nil {
		os.Remove(local)
		return nil, fmt.Errorf("mount %s: %w", serverPath, err)
	}
	logger.Debug().Str("local", local).Str("server", serverPath).Msg("Client mounted")
	return &Client{conn: conn, local: local}, nil
}

// LocalAddr returns the path of the client endpoint
func (c *Client) LocalAddr() string {
	return c.local
}

// Unmount closes the endpoint and removes its socket file
func (c *Client) Unmount() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	if rerr := os.Remove(c.local); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = errors.Join(err, rerr)
	}
	return err
}

// Do sends cmd and returns the raw result code
func (c *Client) Do(ctx context.Context, cmd requests.Command) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		return 0, c.wrap(ctx, "send", err)
	}
	// a past deadline unblocks the round trip once ctx is done
	stop := context.AfterFunc(ctx, func() { c.conn.SetDeadline(time.Unix(1, 0)) })
	defer stop()

	if _, err := c.conn.Write(append([]byte(cmd.String()), 0)); err != nil {
		return 0, c.wrap(ctx, "send", err)
	}
	buf := make([]byte, server.ReplySize+1)
	n, err := c.conn.Read(buf)
	if err != nil {
		return 0, c.wrap(ctx, "receive", err)
	}
	return server.DecodeReply(buf[:n])
}

func (c *Client) wrap(ctx context.Context, what string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	return fmt.Errorf("%s: %w: %w", what, tecnicofs.ErrIO, err)
}

// call runs cmd and converts a negative code into the matching error
func (c *Client) call(ctx context.Context, cmd requests.Command) (int32, error) {
	code, err := c.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if err := tecnicofs.ErrorFromCode(code); err != nil {
		return code, fmt.Errorf("%s: %w", cmd, err)
	}
	return code, nil
}

func (c *Client) Create(ctx context.Context, path string, kind tecnicofs.NodeType) error {
	_, err := c.call(ctx, requests.Create(path, kind))
	return err
}

func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.call(ctx, requests.Delete(path))
	return err
}

// Lookup returns the inumber the server resolved path to
func (c *Client) Lookup(ctx context.Context, path string) (tecnicofs.Inumber, error) {
	code, err := c.call(ctx, requests.Lookup(path))
	if err != nil {
		return tecnicofs.FreeInumber, err
	}
	return tecnicofs.Inumber(code), nil
}

func (c *Client) Move(ctx context.Context, src, dst string) error {
	_, err := c.call(ctx, requests.Move(src, dst))
	return err
}

// Print asks the server to write its tree to outputFile on the server side
func (c *Client) Print(ctx context.Context, outputFile string) error {
	_, err := c.call(ctx, requests.Print(outputFile))
	return err
}
