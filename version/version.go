package version

import (
	"runtime"
	"runtime/debug"
	"strconv"
)

// Populated at build time via -ldflags; debug.ReadBuildInfo fills gaps.
var (
	BuildVersion = "dev"
	GitSHA       = ""
	BuildTime    = ""
)

// ServiceName is reported by /health and /version.
const ServiceName = "nutriscan"

type Info struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	GitSHA      string `json:"git_sha,omitempty"`
	BuildTime   string `json:"build_time,omitempty"`
	VCSModified *bool  `json:"vcs_modified,omitempty"`
	GoVersion   string `json:"go_version"`
	GOOS        string `json:"go_os"`
	GOARCH      string `json:"go_arch"`
}

// Get describes the running nutriscan binary. Values set through -ldflags win
// over the VCS stamps Go embeds at build time.
func Get() Info {
	info := Info{
		Service:   ServiceName,
		Version:   BuildVersion,
		GitSHA:    GitSHA,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		GOOS:      runtime.GOOS,
		GOARCH:    runtime.GOARCH,
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitSHA == "" {
				info.GitSHA = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			if b, err := strconv.ParseBool(s.Value); err == nil && info.VCSModified == nil {
				info.VCSModified = &b
			}
		}
	}
	return info
}
