// Package version reports build metadata. Values come from -ldflags when
// set, otherwise from the VCS stamp the go tool embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

//	go build -ldflags "-X github.com/soyeahso/breakthis/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/breakthis/internal/version.Commit=abc123
//	  -X github.com/soyeahso/breakthis/internal/version.Date=2026-01-01"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func init() {
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(bi.Settings)
	}
}

// fromBuildInfo fills Commit and Date from vcs settings unless ldflags
// already did.
func fromBuildInfo(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch {
		case s.Key == "vcs.revision" && Commit == "unknown":
			Commit = s.Value
		case s.Key == "vcs.time" && Date == "unknown":
			Date = s.Value
		case s.Key == "vcs.modified" && s.Value == "true" && Version == "dev":
			Version = "dev+dirty"
		}
	}
}

// Info is the one-line string `breakthis version` prints.
func Info() string {
	return fmt.Sprintf("breakthis %s (commit %s, built %s, %s, %s/%s)",
		Version, short(Commit), Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// UserAgent identifies outbound completion requests.
func UserAgent() string {
	return "breakthis/" + Version
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
