package config

// MountOptions holds high-level settings for the FUSE bridge.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug    bool   // fuse debug logs
	FsName   string // mount's FsName
	Name     string // mount's Name
	ReadOnly bool   // reject namespace mutations from the kernel
}
