package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"code-intelligence.com/lddr/internal/ldd"
	"code-intelligence.com/lddr/pkg/deptree"
)

type Summary struct {
	// Total is the number of dependency nodes, i.e. all nodes except
	// the root
	Total int `json:"total" yaml:"total"`
	// Unique is the number of distinct resolved files
	Unique int `json:"unique" yaml:"unique"`
	// NotFound are the distinct names which couldn't be resolved,
	// sorted
	NotFound    []string `json:"not_found,omitempty" yaml:"not_found,omitempty"`
	Directories []string `json:"directories,omitempty" yaml:"directories,omitempty"`
}

func Summarize(tree *ldd.DependencyTree) (*Summary, error) {
	s := &Summary{}
	resolved := map[string]struct{}{}
	notFound := map[string]struct{}{}

	err := tree.Walk(func(id deptree.NodeID, _ int) error {
		lib, err := tree.Get(id)
		if err != nil {
			return err
		}
		if lib.IsRoot {
			return nil
		}
		s.Total++
		if lib.Resolved() {
			resolved[lib.RealPath] = struct{}{}
		} else {
			notFound[lib.Name] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Unique = len(resolved)
	if len(notFound) > 0 {
		s.NotFound = maps.Keys(notFound)
		slices.Sort(s.NotFound)
	}
	s.Directories, err = ldd.LibraryPaths(tree)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Print writes a short human readable form of the summary.
func (s *Summary) Print(w io.Writer) error {
	msg := fmt.Sprintf("%d dependencies, %d unique files", s.Total, s.Unique)
	if len(s.NotFound) > 0 {
		msg += fmt.Sprintf(", not found: %s", strings.Join(s.NotFound, ", "))
	}
	_, err := fmt.Fprintln(w, msg)
	return errors.WithStack(err)
}
