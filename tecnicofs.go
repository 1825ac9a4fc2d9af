// Package tecnicofs contains the core domain types and interfaces for the
// TecnicoFS in-memory namespace.
//
// The namespace engine lives in the filesystem package. Front ends (batch
// runner, command queue pipeline, datagram server, FUSE bridge) all funnel
// into the [Operator] interface defined here.
package tecnicofs

// Inumber is the integer handle of a slot in the inode table
type Inumber int32

const (
	// RootInumber is the well-known handle of the root directory. The root is
	// allocated first at startup and is never deleted.
	RootInumber Inumber = 0

	// FreeInumber marks an empty directory entry or an unresolved handle
	FreeInumber Inumber = -1
)
