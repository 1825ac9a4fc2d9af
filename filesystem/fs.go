package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/brettbedarf/tecnicofs"
	"github.com/brettbedarf/tecnicofs/config"
	"github.com/brettbedarf/tecnicofs/internal/util"
)

var _ tecnicofs.Namespace = (*FileSystem)(nil)

// FileSystem is the in-memory namespace. All methods are safe for
// concurrent use unless the configured strategy is [config.NoSync].
type FileSystem struct {
	cfg      *config.Config
	table    *Table
	strategy config.Strategy
	global   sync.Mutex // held for every operation under config.GlobalLock
}

// NewFS builds an empty namespace holding only the root directory
func NewFS(cfg *config.Config) (*FileSystem, error) {
	logger := util.GetLogger("NewFS")

	fs := &FileSystem{
		cfg:      cfg,
		table:    NewTable(cfg.InodeTableSize, cfg.MaxDirEntries),
		strategy: cfg.Strategy,
	}
	root, err := fs.table.Allocate(tecnicofs.DirNode)
	if err != nil {
		return nil, fmt.Errorf("allocate root: %w", err)
	}
	if root != tecnicofs.RootInumber {
		return nil, fmt.Errorf("root allocated at inumber %d", root)
	}
	logger.Debug().
		Str("strategy", cfg.Strategy.String()).
		Int("inodes", cfg.InodeTableSize).
		Int("dirEntries", cfg.MaxDirEntries).
		Msg("Filesystem initialized")
	return fs, nil
}

// Destroy drops every node. The FileSystem must not be used afterwards.
func (fs *FileSystem) Destroy() {
	fs.table.Destroy()
}

// Allocated returns the number of inodes in use, root included
func (fs *FileSystem) Allocated() int {
	return fs.table.Allocated()
}

func (fs *FileSystem) newLockSet() *LockSet {
	return &LockSet{table: fs.table, enabled: fs.strategy == config.PerNodeLock}
}

// serialize takes the global mutex when the strategy asks for it and returns
// the matching unlock
func (fs *FileSystem) serialize() func() {
	if fs.strategy != config.GlobalLock {
		return func() {}
	}
	fs.global.Lock()
	return fs.global.Unlock
}

func (fs *FileSystem) checkName(name string) error {
	if len(name) > fs.cfg.MaxFileName {
		return fmt.Errorf("%w: %d bytes, limit %d", tecnicofs.ErrNameTooLong, len(name), fs.cfg.MaxFileName)
	}
	return nil
}

// Create adds a node of the given kind at path
func (fs *FileSystem) Create(path string, kind tecnicofs.NodeType) error {
	logger := util.GetLogger("FS.Create")
	logger.Trace().Str("path", path).Stringer("kind", kind).Msg("Create called")

	if kind != tecnicofs.FileNode && kind != tecnicofs.DirNode {
		return fmt.Errorf("create %s: %w: node type %q", path, tecnicofs.ErrMalformed, byte(kind))
	}
	parentPath, name, err := splitParentChild(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fs.checkName(name); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer fs.serialize()()
	ls := fs.newLockSet()
	defer ls.Release()

	res, err := fs.traverse(parentPath, ls, ModeModify)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Invalid parent dir")
		return fmt.Errorf("create %s: invalid parent dir %q: %w", path, parentPath, err)
	}
	parent := fs.table.inode(res.inumber)
	if !parent.isDir() {
		return fmt.Errorf("create %s: parent %q: %w", path, parentPath, tecnicofs.ErrNotDirectory)
	}
	if parent.lookupEntry(name) != tecnicofs.FreeInumber {
		return fmt.Errorf("create %s: %w", path, tecnicofs.ErrExists)
	}
	if !parent.hasFreeEntry() {
		return fmt.Errorf("create %s: %w", path, tecnicofs.ErrDirFull)
	}

	child, err := fs.table.Allocate(kind)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Failed to allocate inode")
		return fmt.Errorf("create %s: %w", path, err)
	}
	ls.lock(child, writeLock)
	if err := parent.addEntry(name, child); err != nil {
		if ferr := fs.table.Free(child); ferr != nil {
			logger.Error().Err(ferr).Int32("inumber", int32(child)).Msg("Failed to free unlinked inode")
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Int32("inumber", int32(child)).Msg("Created node")
	return nil
}

// Delete removes the node at path; directories must be empty
func (fs *FileSystem) Delete(path string) error {
	logger := util.GetLogger("FS.Delete")
	logger.Trace().Str("path", path).Msg("Delete called")

	parentPath, name, err := splitParentChild(path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}

	defer fs.serialize()()
	ls := fs.newLockSet()
	defer ls.Release()

	res, err := fs.traverse(parentPath, ls, ModeModify)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Invalid parent dir")
		return fmt.Errorf("delete %s: invalid parent dir %q: %w", path, parentPath, err)
	}
	parent := fs.table.inode(res.inumber)
	if !parent.isDir() {
		return fmt.Errorf("delete %s: parent %q: %w", path, parentPath, tecnicofs.ErrNotDirectory)
	}
	child := parent.lookupEntry(name)
	if child == tecnicofs.FreeInumber {
		return fmt.Errorf("delete %s: %w", path, tecnicofs.ErrNotFound)
	}
	ls.lock(child, writeLock)
	if node := fs.table.inode(child); node.isDir() && !node.isEmpty() {
		return fmt.Errorf("delete %s: %w", path, tecnicofs.ErrNotEmpty)
	}

	if _, err := parent.clearEntry(name); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if err := fs.table.Free(child); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to free inode")
		return fmt.Errorf("delete %s: %w", path, err)
	}
	logger.Debug().Str("path", path).Int32("inumber", int32(child)).Msg("Deleted node")
	return nil
}

// Lookup resolves path to its inumber
func (fs *FileSystem) Lookup(path string) (tecnicofs.Inumber, error) {
	defer fs.serialize()()
	ls := fs.newLockSet()
	defer ls.Release()

	res, err := fs.traverse(path, ls, ModeFind)
	if err != nil {
		return tecnicofs.FreeInumber, fmt.Errorf("lookup %s: %w", path, err)
	}
	return res.inumber, nil
}

// find runs inspect on the terminal node of path while the read locks of
// a ModeFind traversal are still held
func (fs *FileSystem) find(path string, inspect func(inumber tecnicofs.Inumber, node *Inode)) error {
	defer fs.serialize()()
	ls := fs.newLockSet()
	defer ls.Release()

	res, err := fs.walk(path, ls, ModeFind)
	if err != nil {
		return err
	}
	inspect(res.inumber, fs.table.inode(res.inumber))
	return nil
}

// Stat describes the node at path
func (fs *FileSystem) Stat(path string) (tecnicofs.NodeInfo, error) {
	var info tecnicofs.NodeInfo
	err := fs.find(path, func(inumber tecnicofs.Inumber, node *Inode) {
		info = tecnicofs.NodeInfo{Inumber: inumber, Type: node.kind, Gen: node.gen}
	})
	if err != nil {
		return tecnicofs.NodeInfo{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info, nil
}

// ReadDir lists the directory at path in slot order. A child's kind only
// changes while its parent is write-locked, so reading it under the
// directory's read lock is enough.
func (fs *FileSystem) ReadDir(path string) ([]tecnicofs.Entry, error) {
	var entries []tecnicofs.Entry
	notDir := false
	err := fs.find(path, func(_ tecnicofs.Inumber, node *Inode) {
		if !node.isDir() {
			notDir = true
			return
		}
		for _, e := range node.liveEntries() {
			entries = append(entries, tecnicofs.Entry{
				Name:    e.name,
				Inumber: e.inumber,
				Type:    fs.table.inode(e.inumber).kind,
			})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", path, err)
	}
	if notDir {
		return nil, fmt.Errorf("readdir %s: %w", path, tecnicofs.ErrNotDirectory)
	}
	return entries, nil
}

// PrintTree writes every reachable path, depth first in slot order. The
// root prints as "/". Under the per-node strategy every visited node stays
// read-locked until the dump is complete so the output is a consistent
// snapshot.
func (fs *FileSystem) PrintTree(w io.Writer) error {
	defer fs.serialize()()
	ls := fs.newLockSet()
	defer ls.Release()

	bw := bufio.NewWriter(w)
	if err := fs.printNode(bw, ls, tecnicofs.RootInumber, ""); err != nil {
		return err
	}
	return bw.Flush()
}

func (fs *FileSystem) printNode(w *bufio.Writer, ls *LockSet, inumber tecnicofs.Inumber, path string) error {
	ls.lock(inumber, readLock)
	line := path
	if line == "" {
		line = "/"
	}
	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}
	node := fs.table.inode(inumber)
	if !node.isDir() {
		return nil
	}
	for _, e := range node.liveEntries() {
		if err := fs.printNode(w, ls, e.inumber, path+"/"+e.name); err != nil {
			return err
		}
	}
	return nil
}
