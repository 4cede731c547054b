package oscquery

import "strings"

// buildTree assembles the full node tree from the method registry. The
// /avatar/change leaf is injected when absent so peers can always signal an
// avatar switch.
func buildTree(methods map[string]Method) *Node {
	root := &Node{FullPath: "/", Access: AccessNone}

	insert := func(m Method) {
		node := root
		segments := strings.Split(strings.Trim(m.Address, "/"), "/")
		path := ""
		for i, seg := range segments {
			path += "/" + seg
			if node.Contents == nil {
				node.Contents = make(map[string]*Node)
			}
			child, ok := node.Contents[seg]
			if !ok {
				child = &Node{FullPath: path, Access: AccessNone}
				node.Contents[seg] = child
			}
			if i == len(segments)-1 {
				child.Description = m.Description
				child.Access = m.Access
				child.Type = string(m.Type)
				if m.Value != nil {
					child.Value = []any{m.Value}
				}
			}
			node = child
		}
	}

	for _, m := range methods {
		insert(m)
	}
	if _, ok := methods["/avatar/change"]; !ok {
		insert(Method{
			Address:     "/avatar/change",
			Access:      AccessWrite,
			Type:        TypeString,
			Description: "Change avatar by id",
		})
	}
	return root
}

// lookupNode walks the tree to the node at path, nil when absent.
func lookupNode(root *Node, path string) *Node {
	if path == "/" || path == "" {
		return root
	}
	node := root
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		child, ok := node.Contents[seg]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}
