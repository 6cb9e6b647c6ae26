// Package ldd resolves the shared library dependencies of an ELF binary
// without running the dynamic loader. The declared dependencies of the
// binary are looked up in a list of search directories and the resolved
// files are analyzed recursively, yielding a tree of all libraries the
// loader would need to find.
package ldd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"code-intelligence.com/lddr/pkg/deptree"
	"code-intelligence.com/lddr/pkg/elfinfo"
	"code-intelligence.com/lddr/pkg/log"
)

// BinaryFile is the data stored in each node of a DependencyTree.
type BinaryFile struct {
	// Name is the dependency name as declared by the parent binary, or
	// the path passed to Analyze for the root.
	Name string `json:"name" yaml:"name"`
	// RealPath is the path at which the dependency was found. It's
	// empty if the dependency couldn't be resolved, and for the root.
	RealPath string `json:"real_path,omitempty" yaml:"real_path,omitempty"`
	// Interpreter is the dynamic loader the root binary requests. It's
	// only set on the root.
	Interpreter  string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`
	IsRoot       bool   `json:"is_root" yaml:"is_root"`
	IsExecutable bool   `json:"is_executable" yaml:"is_executable"`
}

// Resolved returns true if the dependency was found in the search
// directories.
func (b BinaryFile) Resolved() bool {
	return b.RealPath != ""
}

type DependencyTree = deptree.Tree[BinaryFile]

type Options struct {
	// SearchDirs are the directories in which declared dependencies
	// are looked up, in order
	SearchDirs []string
	// MaxDepth limits the height of the tree if greater than zero.
	// Nodes at that depth are recorded but not expanded.
	MaxDepth int
	// Locator defaults to DirLocator
	Locator Locator
}

type Analyzer struct {
	opts Options
}

func NewAnalyzer(opts *Options) *Analyzer {
	a := &Analyzer{opts: *opts}
	if a.opts.Locator == nil {
		a.opts.Locator = DirLocator{}
	}
	return a
}

// frame is a node whose declared dependencies are being added to the
// tree. The frames on the stack always form the path from the root to
// the node currently being expanded.
type frame struct {
	id           deptree.NodeID
	realPath     string
	isExecutable bool
	libs         []string
	next         int
	depth        int
}

// Analyze builds the dependency tree of the binary at path.
//
// Dependencies which can't be found in the search directories are
// recorded as leaves. Dependencies which are found but can't be read or
// are not valid ELF files abort the analysis: an IOError or an
// elfinfo.ParseError is returned and no tree.
//
// Libraries reachable via multiple paths are resolved and expanded once
// per occurrence. Expansion stops at dependencies declared by a library
// which name the root's interpreter (the loader depends on itself) and
// at files already being expanded further up the same path. Such nodes
// are recorded as leaves, and an interpreter which can't be read is
// not an error.
func (a *Analyzer) Analyze(path string) (*DependencyTree, error) {
	rootMeta, err := readMetadata(path)
	if err != nil {
		return nil, err
	}

	log.Debug(describe(path, rootMeta))

	tree := deptree.New[BinaryFile](len(rootMeta.Libraries) + 1)
	rootID, err := tree.InsertRoot(BinaryFile{
		Name:         path,
		Interpreter:  rootMeta.Interpreter,
		IsRoot:       true,
		IsExecutable: rootMeta.IsExecutable,
	})
	if err != nil {
		return nil, err
	}

	rootRealPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var interpreterName string
	if rootMeta.Interpreter != "" {
		interpreterName = filepath.Base(rootMeta.Interpreter)
	}

	stack := []*frame{{
		id:           rootID,
		realPath:     rootRealPath,
		isExecutable: rootMeta.IsExecutable,
		libs:         rootMeta.Libraries,
		depth:        1,
	}}
	for len(stack) > 0 {
		parent := stack[len(stack)-1]
		if parent.next == len(parent.libs) {
			stack = stack[:len(stack)-1]
			continue
		}
		name := parent.libs[parent.next]
		parent.next++

		child := BinaryFile{Name: name}
		realPath, found := a.opts.Locator.Locate(name, a.opts.SearchDirs)
		if !found {
			log.Debugf("%s: not found", name)
			_, err = tree.InsertChild(parent.id, child)
			if err != nil {
				return nil, err
			}
			continue
		}
		child.RealPath = realPath

		if ancestor := frameFor(stack, realPath); ancestor != nil {
			log.Debugf("%s: %s is a dependency of itself, not expanding it again", name, realPath)
			child.IsExecutable = ancestor.isExecutable
			_, err = tree.InsertChild(parent.id, child)
			if err != nil {
				return nil, err
			}
			continue
		}

		if parent.depth > 1 && interpreterName != "" && name == interpreterName {
			// The interpreter is never expanded, so failing to read it
			// doesn't affect the rest of the tree
			meta, err := readMetadata(realPath)
			if err != nil {
				log.Debugf("%s: not expanding the interpreter, failed to read it: %v", name, err)
			} else {
				log.Debugf("%s: not expanding the interpreter", name)
				child.IsExecutable = meta.IsExecutable
			}
			_, err = tree.InsertChild(parent.id, child)
			if err != nil {
				return nil, err
			}
			continue
		}

		meta, err := readMetadata(realPath)
		if err != nil {
			return nil, err
		}
		child.IsExecutable = meta.IsExecutable
		id, err := tree.InsertChild(parent.id, child)
		if err != nil {
			return nil, err
		}

		if a.opts.MaxDepth > 0 && parent.depth+1 >= a.opts.MaxDepth {
			log.Debugf("%s: maximum depth %d reached", name, a.opts.MaxDepth)
			continue
		}

		log.Debugf("%s => %s", name, realPath)
		stack = append(stack, &frame{
			id:           id,
			realPath:     realPath,
			isExecutable: meta.IsExecutable,
			libs:         meta.Libraries,
			depth:        parent.depth + 1,
		})
	}

	return tree, nil
}

// describe returns a one-line description of the binary like
// "bin/server: 64-bit Executable for EM_X86_64, interpreter /lib64/ld-linux-x86-64.so.2".
func describe(path string, m *elfinfo.Metadata) string {
	bits := 32
	if m.Is64 {
		bits = 64
	}
	s := fmt.Sprintf("%s: %d-bit %s for %s", path, bits, cases.Title(language.English).String(m.Kind()), m.Machine)
	if m.Interpreter != "" {
		s += ", interpreter " + m.Interpreter
	}
	return s
}

// frameFor returns the frame on the stack which is expanding realPath,
// or nil.
func frameFor(stack []*frame, realPath string) *frame {
	i := slices.IndexFunc(stack, func(f *frame) bool {
		return f.realPath == realPath
	})
	if i == -1 {
		return nil
	}
	return stack[i]
}

func readMetadata(path string) (*elfinfo.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(WrapIOError(path, err))
	}
	meta, err := elfinfo.Extract(data)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return meta, nil
}

// LibraryPaths returns the directories in which the dependencies in the
// tree were found, in the order in which they are first encountered in
// a depth-first walk.
func LibraryPaths(tree *DependencyTree) ([]string, error) {
	var libraryPaths []string
	err := tree.Walk(func(id deptree.NodeID, _ int) error {
		lib, err := tree.Get(id)
		if err != nil {
			return err
		}
		if !lib.Resolved() {
			return nil
		}
		libraryPath := filepath.Dir(lib.RealPath)
		if !slices.Contains(libraryPaths, libraryPath) {
			libraryPaths = append(libraryPaths, libraryPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return libraryPaths, nil
}

// SearchDirsWithLdSoConf appends the directories configured in the
// given ld.so.conf file to dirs, skipping those already present.
func SearchDirsWithLdSoConf(dirs []string, ldSoConf string) ([]string, error) {
	confDirs, err := ReadLdSoConf(ldSoConf)
	if err != nil {
		return nil, err
	}
	result := slices.Clone(dirs)
	for _, dir := range confDirs {
		if !slices.Contains(result, dir) {
			result = append(result, dir)
		}
	}
	return result, nil
}
