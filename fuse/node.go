package fuse

import (
	"context"
	"syscall"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/internal/util"
	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const (
	dirMode  = syscall.S_IFDIR | 0o755
	fileMode = syscall.S_IFREG | 0o644

	// renameNoReplace is the Linux RENAME_NOREPLACE flag
	renameNoReplace = 0x1
)

// bridge is shared by every node of one mount
type bridge struct {
	ns       tecnicofs.Namespace
	readOnly bool
	uid, gid uint32
}

// node is addressed by its path in the kernel's view of the tree. The
// kernel serializes operations that change a directory, so the path of a
// live node matches its path in the namespace.
type node struct {
	gofuse.Inode
	bridge *bridge
}

var (
	_ gofuse.InodeEmbedder = (*node)(nil)
	_ gofuse.NodeLookuper  = (*node)(nil)
	_ gofuse.NodeReaddirer = (*node)(nil)
	_ gofuse.NodeGetattrer = (*node)(nil)
	_ gofuse.NodeSetattrer = (*node)(nil)
	_ gofuse.NodeMkdirer   = (*node)(nil)
	_ gofuse.NodeCreater   = (*node)(nil)
	_ gofuse.NodeUnlinker  = (*node)(nil)
	_ gofuse.NodeRmdirer   = (*node)(nil)
	_ gofuse.NodeRenamer   = (*node)(nil)
	_ gofuse.NodeOpener    = (*node)(nil)
	_ gofuse.NodeReader    = (*node)(nil)
)

// path returns the absolute namespace path of n
func (n *node) path() string {
	return "/" + n.Path(nil)
}

func (n *node) childPath(name string) string {
	if p := n.Path(nil); p != "" {
		return "/" + p + "/" + name
	}
	return "/" + name
}

func stableAttr(info tecnicofs.NodeInfo) gofuse.StableAttr {
	mode := uint32(fileMode)
	if info.IsDir() {
		mode = dirMode
	}
	// FUSE reserves inode 0 and roots the tree at 1
	return gofuse.StableAttr{Mode: mode & syscall.S_IFMT, Ino: uint64(info.Inumber) + 1, Gen: info.Gen}
}

func (b *bridge) fillAttr(info tecnicofs.NodeInfo, out *fuse.Attr) {
	out.Ino = uint64(info.Inumber) + 1
	out.Uid = b.uid
	out.Gid = b.gid
	out.Blksize = 4096
	if info.IsDir() {
		out.Mode = dirMode
		out.Nlink = 2
	} else {
		out.Mode = fileMode
		out.Nlink = 1
	}
}

func (n *node) newChild(ctx context.Context, info tecnicofs.NodeInfo, out *fuse.EntryOut) *gofuse.Inode {
	n.bridge.fillAttr(info, &out.Attr)
	return n.NewInode(ctx, &node{bridge: n.bridge}, stableAttr(info))
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	info, err := n.bridge.ns.Stat(n.childPath(name))
	if err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, info, out), 0
}

func (n *node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.bridge.ns.ReadDir(n.path())
	if err != nil {
		return nil, toErrno(err)
	}
	list := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := uint32(fileMode)
		if e.Type == tecnicofs.DirNode {
			mode = dirMode
		}
		list = append(list, fuse.DirEntry{Name: e.Name, Ino: uint64(e.Inumber) + 1, Mode: mode})
	}
	return gofuse.NewListDirStream(list), 0
}

func (n *node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.bridge.ns.Stat(n.path())
	if err != nil {
		return toErrno(err)
	}
	if info.Gen != n.StableAttr().Gen && !n.IsRoot() {
		return syscall.ESTALE
	}
	n.bridge.fillAttr(info, &out.Attr)
	return 0
}

// Setattr accepts and drops attribute changes so tools like touch work
// on existing nodes.
func (n *node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if n.bridge.readOnly {
		return syscall.EROFS
	}
	return n.Getattr(ctx, f, out)
}

func (n *node) create(ctx context.Context, name string, kind tecnicofs.NodeType, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logger := util.GetLogger("Fuse.create")
	if n.bridge.readOnly {
		return nil, syscall.EROFS
	}
	p := n.childPath(name)
	if err := n.bridge.ns.Create(p, kind); err != nil {
		logger.Debug().Err(err).Str("path", p).Msg("Create rejected")
		return nil, toErrno(err)
	}
	info, err := n.bridge.ns.Stat(p)
	if err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, info, out), 0
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return n.create(ctx, name, tecnicofs.DirNode, out)
}

func (n *node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	child, errno := n.create(ctx, name, tecnicofs.FileNode, out)
	return child, nil, 0, errno
}

// remove deletes name when it is a directory exactly when wantDir is set
func (n *node) remove(name string, wantDir bool) syscall.Errno {
	if n.bridge.readOnly {
		return syscall.EROFS
	}
	p := n.childPath(name)
	info, err := n.bridge.ns.Stat(p)
	if err != nil {
		return toErrno(err)
	}
	switch {
	case wantDir && !info.IsDir():
		return syscall.ENOTDIR
	case !wantDir && info.IsDir():
		return syscall.EISDIR
	}
	return toErrno(n.bridge.ns.Delete(p))
}

func (n *node) Unlink(ctx context.Context, name string) syscall.Errno {
	return n.remove(name, false)
}

func (n *node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return n.remove(name, true)
}

// Rename never replaces an existing target; the namespace has no atomic
// replace.
func (n *node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	logger := util.GetLogger("Fuse.Rename")
	if n.bridge.readOnly {
		return syscall.EROFS
	}
	if flags&^renameNoReplace != 0 {
		return syscall.EINVAL
	}
	dst, ok := newParent.(*node)
	if !ok {
		return syscall.EXDEV
	}
	src, target := n.childPath(name), dst.childPath(newName)
	if err := n.bridge.ns.Move(src, target); err != nil {
		logger.Debug().Err(err).Str("src", src).Str("dst", target).Msg("Rename rejected")
		return toErrno(err)
	}
	return 0
}

func (n *node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if n.bridge.readOnly && flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

// Read always reports end of file
func (n *node) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return fuse.ReadResultData(nil), 0
}
