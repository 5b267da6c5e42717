// Package version provides build information and version details.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// These are set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Info contains version and build information
type Info struct {
	Version     string `json:"version"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
	Module      string `json:"module,omitempty"`
	VCSRevision string `json:"vcs_revision,omitempty"`
	VCSModified bool   `json:"vcs_modified"`
}

// Get returns the current version and build information
func Get() Info {
	info := Info{
		Version:   Version,
		BuildTime: BuildTime,
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = buildInfo.GoVersion
		info.Module = buildInfo.Main.Path

		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.VCSRevision = setting.Value
			case "vcs.modified":
				info.VCSModified = setting.Value == "true"
			}
		}
	}

	return info
}

// Revision returns the short commit hash, marked when the tree was dirty.
func (i Info) Revision() string {
	rev := i.VCSRevision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev != "" && i.VCSModified {
		rev += "+dirty"
	}
	return rev
}

// String returns a one-line version string for --version output.
func (i Info) String() string {
	parts := []string{i.Version}
	if rev := i.Revision(); rev != "" {
		parts = append(parts, rev)
	}
	if i.BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("built %s", i.BuildTime))
	}
	if i.GoVersion != "" {
		parts = append(parts, i.GoVersion)
	}
	return strings.Join(parts, " ")
}

// Fields returns the build information as log fields for the startup line.
func (i Info) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", i.Version),
		zap.String("revision", i.Revision()),
		zap.String("go", i.GoVersion),
	}
}

// UserAgent identifies mmctl requests to the server.
func (i Info) UserAgent() string {
	return "mmctl/" + i.Version
}
