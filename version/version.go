// Package version carries the library's build identity, injected at build
// time via -ldflags. The RPC layer reports it in the session hello and the
// HTTP transport stamps it into the User-Agent.
package version

import (
	"fmt"
	"runtime"
)

var (
	// gitVersion is the semantic version, vMAJOR.MINOR.PATCH[-PRERELEASE].
	gitVersion = "v0.0.0-dev"
	// gitCommit is the output of git rev-parse HEAD at build time.
	gitCommit = ""
	// buildDate is ISO8601, the output of date -u +'%Y-%m-%dT%H:%M:%SZ'.
	buildDate = "1970-01-01T00:00:00Z"
)

// Info describes the running build.
type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit,omitempty"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

func (info Info) String() string { return info.GitVersion }

// UserAgent is the value stamped into outgoing HTTP requests,
// e.g. "openllm-go/v0.3.1".
func (info Info) UserAgent() string {
	return "openllm-go/" + info.GitVersion
}

// Get returns the build identity of this binary.
func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
