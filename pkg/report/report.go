// Package report renders dependency trees for the command line.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/gookit/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"code-intelligence.com/lddr/internal/ldd"
	"code-intelligence.com/lddr/pkg/deptree"
	"code-intelligence.com/lddr/util/stringutil"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ValidFormats = []string{string(FormatText), string(FormatJSON), string(FormatYAML)}

const notFound = "not found"

// Node is the serializable form of a dependency tree.
type Node struct {
	ldd.BinaryFile `yaml:",inline"`
	Dependencies   []*Node `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// TreeResult is the serializable result of the tree command for a
// single binary.
type TreeResult struct {
	Tree    *Node    `json:"tree" yaml:"tree"`
	Summary *Summary `json:"summary" yaml:"summary"`
}

func NewTreeResult(tree *ldd.DependencyTree) (*TreeResult, error) {
	doc, err := NewDocument(tree)
	if err != nil {
		return nil, err
	}
	summary, err := Summarize(tree)
	if err != nil {
		return nil, err
	}
	return &TreeResult{Tree: doc, Summary: summary}, nil
}

// NewDocument converts the tree into nested nodes.
func NewDocument(tree *ldd.DependencyTree) (*Node, error) {
	rootID, err := tree.RootID()
	if err != nil {
		return nil, err
	}
	return newNode(tree, rootID)
}

func newNode(tree *ldd.DependencyTree, id deptree.NodeID) (*Node, error) {
	data, err := tree.Get(id)
	if err != nil {
		return nil, err
	}
	childIDs, err := tree.ChildrenIDs(id)
	if err != nil {
		return nil, err
	}
	n := &Node{BinaryFile: data}
	for _, childID := range childIDs {
		child, err := newNode(tree, childID)
		if err != nil {
			return nil, err
		}
		n.Dependencies = append(n.Dependencies, child)
	}
	return n, nil
}

// List is the serializable form of the direct dependencies of a
// binary.
type List struct {
	Binary       string           `json:"binary" yaml:"binary"`
	Dependencies []ldd.BinaryFile `json:"dependencies" yaml:"dependencies"`
}

func NewList(tree *ldd.DependencyTree) (*List, error) {
	rootID, err := tree.RootID()
	if err != nil {
		return nil, err
	}
	root, err := tree.Get(rootID)
	if err != nil {
		return nil, err
	}
	ids, err := tree.ChildrenIDs(rootID)
	if err != nil {
		return nil, err
	}
	l := &List{Binary: root.Name, Dependencies: []ldd.BinaryFile{}}
	for _, id := range ids {
		lib, err := tree.Get(id)
		if err != nil {
			return nil, err
		}
		l.Dependencies = append(l.Dependencies, lib)
	}
	return l, nil
}

// PrintList prints one line per direct dependency of the root in the
// form "<name> => <path>", using "not found" as path for unresolved
// dependencies.
func PrintList(w io.Writer, tree *ldd.DependencyTree, indent string) error {
	l, err := NewList(tree)
	if err != nil {
		return err
	}
	colorized := useColor(w)
	for _, lib := range l.Dependencies {
		path := lib.RealPath
		if !lib.Resolved() {
			path = notFoundText(colorized)
		}
		_, err = fmt.Fprintf(w, "%s%s => %s\n", indent, lib.Name, path)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// PrintTree renders the whole tree. Styling is only applied if w is a
// terminal.
func PrintTree(w io.Writer, tree *ldd.DependencyTree) error {
	rootID, err := tree.RootID()
	if err != nil {
		return err
	}
	colorized := useColor(w)
	root, err := treeNode(tree, rootID, colorized)
	if err != nil {
		return err
	}
	printer := pterm.DefaultTree.WithRoot(pterm.TreeNode{Children: []pterm.TreeNode{root}})
	if !colorized {
		printer = printer.WithTreeStyle(&pterm.Style{}).WithTextStyle(&pterm.Style{})
	}
	s, err := printer.Srender()
	if err != nil {
		return errors.WithStack(err)
	}
	_, err = fmt.Fprint(w, s)
	return errors.WithStack(err)
}

func treeNode(tree *ldd.DependencyTree, id deptree.NodeID, colorized bool) (pterm.TreeNode, error) {
	lib, err := tree.Get(id)
	if err != nil {
		return pterm.TreeNode{}, err
	}

	var text string
	switch {
	case lib.IsRoot && lib.Interpreter != "":
		text = fmt.Sprintf("%s (interpreter: %s)", lib.Name, lib.Interpreter)
	case lib.IsRoot:
		text = lib.Name
	case lib.Resolved():
		text = fmt.Sprintf("%s => %s", lib.Name, lib.RealPath)
	default:
		text = fmt.Sprintf("%s => %s", lib.Name, notFoundText(colorized))
	}

	node := pterm.TreeNode{Text: text}
	childIDs, err := tree.ChildrenIDs(id)
	if err != nil {
		return pterm.TreeNode{}, err
	}
	for _, childID := range childIDs {
		child, err := treeNode(tree, childID, colorized)
		if err != nil {
			return pterm.TreeNode{}, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Write serializes v in the given format. JSON is colorized if w is a
// terminal.
func Write(w io.Writer, format Format, v any) error {
	var out []byte
	var err error
	switch format {
	case FormatJSON:
		if useColor(w) {
			out, err = prettyjson.Marshal(v)
			if err != nil {
				return errors.WithStack(err)
			}
		} else {
			s, err := stringutil.ToJSONString(v)
			if err != nil {
				return err
			}
			out = []byte(s)
		}
		out = append(out, '\n')
	case FormatYAML:
		out, err = yaml.Marshal(v)
		if err != nil {
			return errors.WithStack(err)
		}
	default:
		return errors.Errorf("unsupported output format %q", format)
	}
	_, err = w.Write(out)
	return errors.WithStack(err)
}

func notFoundText(colorized bool) string {
	if colorized {
		return color.Red.Sprint(notFound)
	}
	return notFound
}

// useColor returns true if escape sequences can be written to w, which
// is only the case for terminals and if --no-color wasn't set.
func useColor(w io.Writer) bool {
	return color.Enable && isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
