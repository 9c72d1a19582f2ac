// Package version reports the PhotoDrop build.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	AppName    = "PhotoDrop"
	devVersion = "0.1.0-dev"
	unknown    = "unknown"
)

// set through -ldflags "-X github.com/openmined/photodrop/internal/version.Version=..."
var (
	Version   = devVersion
	Revision  = unknown
	BuildDate = unknown
)

// Info is the build description served on the health endpoint
type Info struct {
	Version   string `json:"version"`
	Revision  string `json:"revision"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Revision:  Revision,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders `PhotoDrop 0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-05-01T10:00:00Z)`
func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s; %s; %s; %s)", AppName, i.Version, shortRevision(i.Revision), i.GoVersion, i.Platform, i.BuildDate)
}

func Detailed() string {
	return Get().String()
}

func shortRevision(rev string) string {
	dirty := strings.HasSuffix(rev, "-dirty")
	rev = strings.TrimSuffix(rev, "-dirty")
	if len(rev) > 7 {
		rev = rev[:7]
	}
	if dirty {
		rev += "-dirty"
	}
	return rev
}

// fillFromBuildInfo only fills values that ldflags left at their defaults
func fillFromBuildInfo(mainVersion string, settings []debug.BuildSetting) {
	if Version == devVersion && mainVersion != "" && mainVersion != "(devel)" {
		Version = strings.TrimPrefix(mainVersion, "v")
	}

	var modified bool
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if Revision == unknown {
				Revision = s.Value
			}
		case "vcs.time":
			if BuildDate == unknown {
				BuildDate = s.Value
			}
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if modified && Revision != unknown && !strings.HasSuffix(Revision, "-dirty") {
		Revision += "-dirty"
	}
}

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(info.Main.Version, info.Settings)
	}
}
