package ldd

import (
	"path/filepath"
	"runtime"
	"strings"

	"code-intelligence.com/lddr/pkg/log"
	"code-intelligence.com/lddr/util/fileutil"
)

// Locator finds the file a declared dependency name refers to.
type Locator interface {
	// Locate returns the path of the first file with the given name in
	// the search directories, in order, and whether one was found.
	Locate(name string, searchDirs []string) (string, bool)
}

// DirLocator looks up declared names in a list of directories, like the
// dynamic loader does for its default search path.
//
// Note that the LD_LIBRARY_PATH environment variable and the DT_RPATH
// and DT_RUNPATH entries of the binaries are intentionally not taken
// into account, only the search directories passed in are.
type DirLocator struct{}

var _ Locator = DirLocator{}

func (DirLocator) Locate(name string, searchDirs []string) (string, bool) {
	// Declared dependencies are bare file names. A name with a path
	// separator would be loaded from that path directly, which is
	// outside of what the search directories describe.
	if name == "" || strings.ContainsRune(name, '/') {
		return "", false
	}

	for _, dir := range searchDirs {
		path := filepath.Join(dir, name)
		if fileutil.IsRegularFile(path) {
			return path, true
		}
	}
	log.Debugf("%s not found in any of %s", name, strings.Join(searchDirs, ":"))
	return "", false
}

// multiarchTriplets maps GOARCH to the Debian multiarch tuple used for
// library directories.
var multiarchTriplets = map[string]string{
	"386":     "i386-linux-gnu",
	"amd64":   "x86_64-linux-gnu",
	"arm":     "arm-linux-gnueabihf",
	"arm64":   "aarch64-linux-gnu",
	"ppc64le": "powerpc64le-linux-gnu",
	"riscv64": "riscv64-linux-gnu",
	"s390x":   "s390x-linux-gnu",
}

// DefaultSearchDirs returns the standard library directories: the
// multiarch directories of the host architecture followed by the
// 64-bit, generic and 32-bit library directories.
func DefaultSearchDirs() []string {
	var dirs []string
	if triplet, ok := multiarchTriplets[runtime.GOARCH]; ok {
		dirs = append(dirs,
			filepath.Join("/lib", triplet),
			filepath.Join("/usr/lib", triplet),
		)
	}
	return append(dirs,
		"/lib64",
		"/usr/lib64",
		"/lib",
		"/usr/lib",
		"/lib32",
		"/usr/lib32",
	)
}
