package ldd

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"code-intelligence.com/lddr/pkg/log"
)

const DefaultLdSoConf = "/etc/ld.so.conf"

var (
	includeRegex   = regexp.MustCompile(`^include\s+(?P<patterns>.+)$`)
	hwcapRegex     = regexp.MustCompile(`^hwcap\s`)
	commentRegex   = regexp.MustCompile(`#.*$`)
	separatorRegex = regexp.MustCompile(`[\s,:]+`)
)

// ReadLdSoConf returns the directories listed in the given ld.so.conf
// file, in order, following "include" directives. Relative include
// patterns are resolved against the directory of the including file.
// Files that don't exist are skipped, like ldconfig does. Each file is
// only read once, so include loops terminate.
func ReadLdSoConf(path string) ([]string, error) {
	var dirs []string
	err := readLdSoConf(path, map[string]bool{}, &dirs)
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

func readLdSoConf(path string, seen map[string]bool, dirs *[]string) error {
	path = filepath.Clean(path)
	if seen[path] {
		return nil
	}
	seen[path] = true

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debugf("%s doesn't exist, skipping", path)
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(commentRegex.ReplaceAllString(scanner.Text(), ""))
		if line == "" || hwcapRegex.MatchString(line) {
			continue
		}

		if match := includeRegex.FindStringSubmatch(line); match != nil {
			// An include line can list multiple patterns
			for _, pattern := range strings.Fields(match[includeRegex.SubexpIndex("patterns")]) {
				err = readIncludePattern(path, pattern, seen, dirs)
				if err != nil {
					return err
				}
			}
			continue
		}

		// Directories may be separated by whitespace, commas or colons
		for _, dir := range separatorRegex.Split(line, -1) {
			// Old-style "dir=type" entries
			dir, _, _ = strings.Cut(dir, "=")
			if dir == "" || slices.Contains(*dirs, filepath.Clean(dir)) {
				continue
			}
			*dirs = append(*dirs, filepath.Clean(dir))
		}
	}
	return errors.WithStack(scanner.Err())
}

func readIncludePattern(path, pattern string, seen map[string]bool, dirs *[]string) error {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(filepath.Dir(path), pattern)
	}
	matches, err := zglob.Glob(pattern)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "invalid include pattern %q in %s", pattern, path)
	}
	// glob(3) as used by ldconfig returns the matches sorted
	sort.Strings(matches)
	for _, m := range matches {
		err = readLdSoConf(m, seen, dirs)
		if err != nil {
			return err
		}
	}
	return nil
}
