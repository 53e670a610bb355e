package models

import "sync"

// Node is one element of a UI hierarchy as reported by an event source.
// Trees are borrowed: sources acquire nodes from the pool while parsing
// a hierarchy dump, and the capture loop releases the whole tree once
// classification is done. Nothing may retain a *Node past that point.
type Node struct {
	Text          string  `json:"text,omitempty"`
	ViewID        string  `json:"view_id,omitempty"`
	Description   string  `json:"description,omitempty"`
	Clickable     bool    `json:"clickable,omitempty"`
	Focusable     bool    `json:"focusable,omitempty"`
	LongClickable bool    `json:"long_clickable,omitempty"`
	Children      []*Node `json:"children,omitempty"`
}

var nodePool = sync.Pool{
	New: func() any { return new(Node) },
}

// AcquireNode returns a zeroed node from the pool.
func AcquireNode() *Node {
	return nodePool.Get().(*Node)
}

// Interactive reports whether the node accepts any tracked interaction.
func (n *Node) Interactive() bool {
	return n.Clickable || n.Focusable || n.LongClickable
}

// Release returns the node and its whole subtree to the pool.
func (n *Node) Release() {
	for _, child := range n.Children {
		child.Release()
	}
	*n = Node{}
	nodePool.Put(n)
}
