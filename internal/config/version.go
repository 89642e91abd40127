package config

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/bobmcallan/folio-portal/internal/config.Version=...".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.Commit)
}

var vcsOnce = sync.OnceValues(func() (revision, at string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.time":
			at = s.Value
		}
	}
	return revision, at
})

// CurrentBuild returns the ldflags values, filling unset build and commit
// from the VCS stamp go build embeds.
func CurrentBuild() BuildInfo {
	b := BuildInfo{Version: Version, Build: Build, Commit: GitCommit}
	revision, at := vcsOnce()
	if b.Commit == "unknown" && revision != "" {
		b.Commit = shortRevision(revision)
	}
	if b.Build == "unknown" && at != "" {
		b.Build = at
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// UserAgent is sent with every request to folio-server.
func UserAgent() string {
	return "folio-portal/" + Version
}
