package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version can be set at build time with something like:
// go build -ldflags "-X github.com/vvvst/vvvst/version.Version=$(git describe --dirty)"
var Version string

const (
	Name   = "VVVST"
	Vendor = "vvvst"

	// PluginID is the unique id reported to VST hosts, the fourcc "VvSt".
	PluginID = int32('V')<<24 | int32('v')<<16 | int32('S')<<8 | int32('t')
)

var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	var revision string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}
	if revision != "" && modified {
		return revision + "-dirty"
	}
	return revision
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

// PluginVersion packs Version into the integer form hosts display, i.e.
// "v1.2.3" becomes 1203. Unparseable versions give 0.
func PluginVersion() int32 {
	return pluginVersion(Version)
}

func pluginVersion(v string) int32 {
	var major, minor, patch int32
	n, _ := fmt.Sscanf(strings.TrimPrefix(v, "v"), "%d.%d.%d", &major, &minor, &patch)
	if n == 0 {
		return 0
	}
	return major*1000 + minor*100 + patch
}
