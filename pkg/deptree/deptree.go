// Package deptree implements an ordered, rooted, write-once tree whose
// nodes live in an arena and are addressed by opaque identifiers.
//
// Children are kept in insertion order. There is no removal operation.
// The height of a tree counts the root as depth 1, so a tree consisting
// only of a root has height 1 and an empty tree has height 0.
package deptree

import (
	"fmt"

	"github.com/pkg/errors"
)

// NodeID identifies a node within the tree it was returned from.
type NodeID int

type node[T any] struct {
	data     T
	parent   NodeID
	children []NodeID
}

// Tree is an arena of nodes. The zero value is an empty tree ready to
// use.
type Tree[T any] struct {
	nodes []node[T]
}

// ErrRootExists is returned by InsertRoot if the tree already has a
// root.
var ErrRootExists = errors.New("tree already has a root")

// NotFoundError is returned when a node ID doesn't exist in the tree.
type NotFoundError struct {
	ID NodeID
}

func (e *NotFoundError) Error() string {
	if e.ID < 0 {
		return "tree has no root"
	}
	return fmt.Sprintf("node %d not found", e.ID)
}

func IsNotFoundError(err error) bool {
	var notFoundErr *NotFoundError
	return errors.As(err, &notFoundErr)
}

const noParent NodeID = -1

// New returns an empty tree with room for capacity nodes.
func New[T any](capacity int) *Tree[T] {
	return &Tree[T]{nodes: make([]node[T], 0, capacity)}
}

// InsertRoot inserts the root node. The root always has ID 0.
func (t *Tree[T]) InsertRoot(data T) (NodeID, error) {
	if len(t.nodes) > 0 {
		return 0, errors.WithStack(ErrRootExists)
	}
	t.nodes = append(t.nodes, node[T]{data: data, parent: noParent})
	return 0, nil
}

// InsertChild appends a node as the last child of parent.
func (t *Tree[T]) InsertChild(parent NodeID, data T) (NodeID, error) {
	if !t.contains(parent) {
		return 0, errors.WithStack(&NotFoundError{ID: parent})
	}
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node[T]{data: data, parent: parent})
	t.nodes[parent].children = append(t.nodes[parent].children, id)
	return id, nil
}

// Get returns the data stored in the node.
func (t *Tree[T]) Get(id NodeID) (T, error) {
	if !t.contains(id) {
		var zero T
		return zero, errors.WithStack(&NotFoundError{ID: id})
	}
	return t.nodes[id].data, nil
}

// ChildrenIDs returns the IDs of the node's children in insertion
// order. The returned slice is a copy.
func (t *Tree[T]) ChildrenIDs(id NodeID) ([]NodeID, error) {
	if !t.contains(id) {
		return nil, errors.WithStack(&NotFoundError{ID: id})
	}
	children := make([]NodeID, len(t.nodes[id].children))
	copy(children, t.nodes[id].children)
	return children, nil
}

// RootID returns the ID of the root node.
func (t *Tree[T]) RootID() (NodeID, error) {
	if len(t.nodes) == 0 {
		return 0, errors.WithStack(&NotFoundError{ID: noParent})
	}
	return 0, nil
}

// Len returns the number of nodes in the tree.
func (t *Tree[T]) Len() int {
	return len(t.nodes)
}

// Height returns the number of nodes on the longest path from the root
// to a leaf.
func (t *Tree[T]) Height() int {
	height := 0
	// Children are always inserted after their parent, so the depth of
	// every parent is known by the time its children are visited.
	depths := make([]int, len(t.nodes))
	for i, n := range t.nodes {
		if n.parent == noParent {
			depths[i] = 1
		} else {
			depths[i] = depths[n.parent] + 1
		}
		if depths[i] > height {
			height = depths[i]
		}
	}
	return height
}

// Walk calls fn for every node in depth-first pre-order, siblings in
// insertion order. The root has depth 1. If fn returns an error, the
// walk stops and the error is returned.
func (t *Tree[T]) Walk(fn func(id NodeID, depth int) error) error {
	if len(t.nodes) == 0 {
		return nil
	}

	type item struct {
		id    NodeID
		depth int
	}
	stack := []item{{id: 0, depth: 1}}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		err := fn(cur.id, cur.depth)
		if err != nil {
			return err
		}

		children := t.nodes[cur.id].children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{id: children[i], depth: cur.depth + 1})
		}
	}
	return nil
}

func (t *Tree[T]) contains(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}
