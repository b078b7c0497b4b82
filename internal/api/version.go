package api

import "github.com/MJE43/visual-replay-go/internal/engine"

// Version information - these will be set at build time via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo returns the current version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:       Version,
		EngineVersion: engine.Version,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}
