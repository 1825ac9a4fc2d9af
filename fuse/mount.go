// Package fuse mounts a namespace through the kernel so ordinary tools can
// walk it. Files carry no data; only the tree is exposed.
package fuse

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Server wraps the underlying fuse.Server.
type Server struct {
	server     *fuse.Server
	mountPoint string
}

// Mount mounts ns at mountPoint according to cfg.MountOptions and starts
// serving. The mount point is created when missing.
func Mount(cfg *config.Config, ns tecnicofs.Namespace, mountPoint string) (*Server, error) {
	logger := util.GetLogger("Fuse.Mount")

	if mountPoint == "" {
		return nil, fmt.Errorf("mount point is required")
	}
	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return nil, fmt.Errorf("create mount point %s: %w", mountPoint, err)
	}

	opts := fuseOptions(&cfg.MountOptions)
	root := &node{bridge: &bridge{ns: ns, readOnly: cfg.ReadOnly, uid: uint32(os.Getuid()), gid: uint32(os.Getgid())}}
	srv, err := gofuse.Mount(mountPoint, root, opts)
	if err != nil {
		return nil, fmt.Errorf("mount %s: %w", mountPoint, err)
	}
	logger.Info().Str("mountpoint", mountPoint).Bool("readOnly", cfg.ReadOnly).Msg("Namespace mounted")
	return &Server{server: srv, mountPoint: mountPoint}, nil
}

func fuseOptions(m *config.MountOptions) *gofuse.Options {
	entryTimeout := time.Second
	attrTimeout := time.Second
	negativeTimeout := 100 * time.Millisecond

	opts := &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName: m.FsName,
			Name:   m.Name,
			Debug:  m.Debug,
			Logger: util.NewLogLogger("Fuse", util.DebugLevel),
		},
	}
	if m.ReadOnly {
		opts.MountOptions.Options = append(opts.MountOptions.Options, "ro")
	}
	return opts
}

// Wait blocks until the file system is unmounted
func (s *Server) Wait() {
	s.server.Wait()
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	logger := util.GetLogger("Fuse.Unmount")
	if err := s.server.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", s.mountPoint, err)
	}
	logger.Info().Str("mountpoint", s.mountPoint).Msg("Namespace unmounted")
	return nil
}

// toErrno maps engine errors onto the errno values the result codes
// already use.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return syscall.Errno(-tecnicofs.ResultCode(err))
}
