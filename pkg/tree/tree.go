// Clone phylogeny assembly from binary split paths.
//
// Terminal clone ids encode their root-to-leaf split history ("r", "r0",
// "r01", ...). The tree is the prefix trie over those ids with unary chains
// collapsed, so internal nodes exist only at real branch points.

package tree

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Node is one vertex of the assembled phylogeny. Leaves carry the full clone
// id in Name; internal nodes carry the shared path prefix. Length is the
// number of split levels collapsed into the branch to the parent.
type Node struct {
	Name     string
	Length   float64
	Parent   *Node
	Children []*Node
}

// Assemble builds the phylogeny for a finished set of terminal clone ids.
// Ids must be non-empty, pairwise distinct, and prefix-free; a violation
// means the splitter broke its partition invariant and is reported as an
// error rather than repaired.
func Assemble(leafIDs []string) (*Node, error) {
	if len(leafIDs) == 0 {
		return nil, fmt.Errorf("tree: no leaf ids")
	}

	ids := make([]string, len(leafIDs))
	copy(ids, leafIDs)
	sort.Strings(ids)

	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("tree: empty leaf id")
		}
		if i > 0 {
			if ids[i-1] == id {
				return nil, fmt.Errorf("tree: duplicate leaf id %q", id)
			}
			if strings.HasPrefix(id, ids[i-1]) {
				return nil, fmt.Errorf("tree: leaf id %q is an ancestor of %q", ids[i-1], id)
			}
		}
	}

	root := &Node{Name: ids[0][:1]}
	for _, id := range ids {
		insert(root, id)
	}
	for _, c := range root.Children {
		collapse(c)
	}
	return root, nil
}

// insert threads one id through the uncollapsed trie, creating single-step
// children as needed.
func insert(root *Node, id string) {
	cur := root
	for i := len(root.Name); i < len(id); i++ {
		prefix := id[:i+1]
		var next *Node
		for _, c := range cur.Children {
			if c.Name == prefix {
				next = c
				break
			}
		}
		if next == nil {
			next = &Node{Name: prefix, Length: 1, Parent: cur}
			cur.Children = append(cur.Children, next)
			sort.Slice(cur.Children, func(a, b int) bool {
				return cur.Children[a].Name < cur.Children[b].Name
			})
		}
		cur = next
	}
}

// collapse removes unary chains below n by folding single children into
// their parent, accumulating branch lengths. The root is never collapsed.
func collapse(n *Node) {
	for len(n.Children) == 1 {
		child := n.Children[0]
		n.Name = child.Name
		n.Length += child.Length
		n.Children = child.Children
		for _, gc := range n.Children {
			gc.Parent = n
		}
	}
	for _, c := range n.Children {
		collapse(c)
	}
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Leaves returns all leaves under n in left-to-right order.
func (n *Node) Leaves() []*Node {
	if n.IsLeaf() {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// Depth returns the maximum number of split levels from n to any leaf,
// counting collapsed levels.
func (n *Node) Depth() int {
	if n.IsLeaf() {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		d := c.Depth() + int(c.Length)
		if d > max {
			max = d
		}
	}
	return max
}

// Newick serializes the tree in newick format with branch lengths. Only
// leaves are labeled.
func (n *Node) Newick() string {
	var b strings.Builder
	writeNewick(&b, n)
	b.WriteString(";")
	return b.String()
}

func writeNewick(b *strings.Builder, n *Node) {
	if n.IsLeaf() {
		b.WriteString(n.Name)
	} else {
		b.WriteString("(")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(",")
			}
			writeNewick(b, c)
		}
		b.WriteString(")")
	}
	if n.Parent != nil {
		b.WriteString(":")
		b.WriteString(strconv.FormatFloat(n.Length, 'f', -1, 64))
	}
}
