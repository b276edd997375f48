package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	// Version is the application version, set via ldflags during build.
	Version = "dev"
	// GitCommit is the git commit hash, set via ldflags during build.
	GitCommit = "unknown"
	// BuildDate is the build timestamp, set via ldflags during build.
	BuildDate = "unknown"
)

var started = time.Now()

// Info contains version and build metadata.
type Info struct {
	Version   string `json:"version" example:"1.2.0" doc:"Release version"`
	GitCommit string `json:"git_commit" example:"3f2a9c1" doc:"Source revision"`
	BuildDate string `json:"build_date" example:"2026-05-01T12:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain"`
	Platform  string `json:"platform" example:"linux/arm" doc:"GOOS/GOARCH"`
	Uptime    string `json:"uptime" example:"3h2m1s" doc:"Time since the process started"`
}

// Get returns version and build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Uptime:    time.Since(started).Truncate(time.Second).String(),
	}
}

// String returns a one-line description for --version output and logs.
func String() string {
	return fmt.Sprintf("relaynode %s (%s, built %s)", Version, GitCommit, BuildDate)
}
