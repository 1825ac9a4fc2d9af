package config

import "github.com/brettbedarf/tecnicofs/internal/util"

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultStrategy   = PerNodeLock
	DefaultNumThreads = 1

	// DefaultInodeTableSize includes the root inode
	DefaultInodeTableSize = 50
	DefaultMaxDirEntries  = 20
	DefaultMaxFileName    = 100

	// DefaultQueueCapacity is the number of slots in the command ring
	DefaultQueueCapacity = 10
	// DefaultMaxCommands bounds how many commands the batch front end loads
	DefaultMaxCommands = 150000
	// DefaultMaxInputSize bounds a command line or request datagram in bytes
	DefaultMaxInputSize = 100

	// DefaultMaxMoveRetries of 0 retries a contended move until it succeeds
	DefaultMaxMoveRetries = 0

	DefaultFsName = "tecnicofs"
	DefaultName   = "tecnicofs"
)

// CLI verbosity values accepted by [ConfigOverride.LogLvl]
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)
