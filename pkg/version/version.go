// Package version reports the build and protocol versions of the LAN mode tools.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/yuvaraj-ayla/lanmode/pkg/transport"
)

// Version is the release of this build. Override with
// -ldflags "-X github.com/yuvaraj-ayla/lanmode/pkg/version.Version=1.2.0".
var Version = "dev"

// Info describes one build.
type Info struct {
	Version   string
	Revision  string
	Modified  bool
	GoVersion string

	// MessageVersion and Proto are the key exchange ver and proto values
	// this build speaks.
	MessageVersion int
	Proto          int
}

// Get returns the version information of the running binary.
func Get() Info {
	info := Info{
		Version:        Version,
		GoVersion:      runtime.Version(),
		MessageVersion: transport.MessageVersion,
		Proto:          transport.ProtoCBCAES256,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Revision = s.Value
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	return info
}

// String returns a one-line summary such as
// "dev (rev 1a2b3c4d, go1.22.1, lan ver 1 proto 1)".
func (i Info) String() string {
	rev := i.Revision
	if len(rev) > 8 {
		rev = rev[:8]
	}
	if rev == "" {
		rev = "unknown"
	}
	if i.Modified {
		rev += "+dirty"
	}
	return fmt.Sprintf("%s (rev %s, %s, lan ver %d proto %d)", i.Version, rev, i.GoVersion, i.MessageVersion, i.Proto)
}
