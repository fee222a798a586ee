package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set through -ldflags "-X ...".
var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
	GoVersion  string `json:"go_version,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/KatnessChen/MaraMap-Backend",
		Service:    "MaraMap Ingest",
		Version:    Version,
		CommitHash: commit(),
		GoVersion:  runtime.Version(),
	}
}

// commit falls back to the revision the go toolchain stamped into the binary.
func commit() string {
	if CommitHash != "unknown" {
		return CommitHash
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return CommitHash
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return CommitHash
}

// UserAgent is sent with every outbound request (JWKS fetches, store API calls).
func UserAgent(component string) string {
	return fmt.Sprintf("MaraMap/%s (%s; commit=%s)", Version, component, commit())
}
