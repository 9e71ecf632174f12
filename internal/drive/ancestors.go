package drive

import (
	"context"
	"fmt"
	"slices"
)

// NodeFinder looks up one of an owner's nodes by id, returning (nil, nil)
// when absent.
type NodeFinder func(ctx context.Context, ownerID, id string) (*Node, error)

// WalkAncestors follows parent pointers from nodeID up to the root and
// returns the ancestors root-first, excluding the node itself. A parent that
// was already visited means the tree has a cycle; that is reported as an
// internal error instead of looping.
func WalkAncestors(ctx context.Context, ownerID, nodeID string, find NodeFinder) ([]*Node, error) {
	node, err := find(ctx, ownerID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("loading node %s: %w", nodeID, err)
	}
	if node == nil {
		return nil, NotFoundError("ancestor chain", "node %s not found", nodeID)
	}

	visited := map[string]bool{node.ID: true}
	var chain []*Node
	for parentID := node.ParentID; parentID != ""; {
		if visited[parentID] {
			return nil, &Error{Kind: KindInternal, Op: "ancestor chain", Message: fmt.Sprintf("cycle detected at node %s", parentID)}
		}
		visited[parentID] = true

		parent, err := find(ctx, ownerID, parentID)
		if err != nil {
			return nil, fmt.Errorf("loading ancestor %s: %w", parentID, err)
		}
		if parent == nil {
			return nil, &Error{Kind: KindInternal, Op: "ancestor chain", Message: fmt.Sprintf("dangling parent %s", parentID)}
		}
		chain = append(chain, parent)
		parentID = parent.ParentID
	}
	slices.Reverse(chain)
	return chain, nil
}
