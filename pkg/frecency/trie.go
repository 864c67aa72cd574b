package frecency

// prefixTrie is a character trie over lowercased command text. Each node
// keeps two id sets: terminal ids, whose full command ends exactly at this
// node, and transit ids, whose command merely passes through on the way to
// a deeper node. Lookup answers from the transit set so every command
// sharing the prefix is returned; scoring walks entries once instead of
// once per depth, which is the whole point of the split.
type prefixTrie struct {
	root *trieNode
}

type trieNode struct {
	children map[byte]*trieNode
	terminal map[int64]struct{}
	transit  map[int64]struct{}
}

func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[byte]*trieNode),
		terminal: make(map[int64]struct{}),
		transit:  make(map[int64]struct{}),
	}
}

func newPrefixTrie() *prefixTrie {
	return &prefixTrie{root: newTrieNode()}
}

// Insert walks (creating as needed) one node per character of the
// lowercased text, adding id to every visited node's transit set and to
// the final node's terminal set.
func (t *prefixTrie) Insert(lowerText string, id int64) {
	node := t.root
	for i := 0; i < len(lowerText); i++ {
		c := lowerText[i]
		child, ok := node.children[c]
		if !ok {
			child = newTrieNode()
			node.children[c] = child
		}
		child.transit[id] = struct{}{}
		node = child
	}
	node.terminal[id] = struct{}{}
}

// Lookup returns the ids of every command whose text begins with
// lowerPrefix, or nil when no stored command has that prefix.
func (t *prefixTrie) Lookup(lowerPrefix string) []int64 {
	node := t.root
	for i := 0; i < len(lowerPrefix); i++ {
		child, ok := node.children[lowerPrefix[i]]
		if !ok {
			return nil
		}
		node = child
	}
	if node == t.root {
		return nil
	}
	ids := make([]int64, 0, len(node.transit))
	for id := range node.transit {
		ids = append(ids, id)
	}
	return ids
}

// Remove strips id from every node's sets with a depth-first walk. Empty
// nodes are left in place; Prune reclaims them.
func (t *prefixTrie) Remove(id int64) {
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		delete(n.terminal, id)
		delete(n.transit, id)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(t.root)
}

// Prune drops every id not in valid from every node, then removes child
// nodes that ended up with no ids and no descendants of their own.
func (t *prefixTrie) Prune(valid map[int64]struct{}) {
	var walk func(n *trieNode) bool
	walk = func(n *trieNode) bool {
		for id := range n.terminal {
			if _, ok := valid[id]; !ok {
				delete(n.terminal, id)
			}
		}
		for id := range n.transit {
			if _, ok := valid[id]; !ok {
				delete(n.transit, id)
			}
		}
		for c, child := range n.children {
			if walk(child) {
				delete(n.children, c)
			}
		}
		return len(n.children) == 0 && len(n.terminal) == 0 && len(n.transit) == 0
	}
	walk(t.root)
}

// contains reports whether id survives anywhere under the path of
// lowerText, used by tests and consistency checks.
func (t *prefixTrie) contains(lowerText string, id int64) bool {
	node := t.root
	for i := 0; i < len(lowerText); i++ {
		child, ok := node.children[lowerText[i]]
		if !ok {
			return false
		}
		node = child
	}
	_, ok := node.terminal[id]
	return ok
}
