package tree

import "iter"

// PreOrder returns a lazy, restartable iterator over the subtree rooted at
// the given activity, in document pre-order (the activity itself first).
func (t *Tree) PreOrder(a *Activity) iter.Seq[*Activity] {
	return func(yield func(*Activity) bool) {
		var walk func(*Activity) bool
		walk = func(n *Activity) bool {
			if !yield(n) {
				return false
			}
			for _, c := range n.Children {
				if !walk(t.arena[c]) {
					return false
				}
			}
			return true
		}
		walk(a)
	}
}

// Ancestors returns a lazy iterator over the activity's ancestors, nearest
// parent first, ending at the root.
func (t *Tree) Ancestors(a *Activity) iter.Seq[*Activity] {
	return func(yield func(*Activity) bool) {
		for p := t.ParentOf(a); p != nil; p = t.ParentOf(p) {
			if !yield(p) {
				return
			}
		}
	}
}

// IsAncestor reports whether anc is a proper ancestor of a.
func (t *Tree) IsAncestor(anc, a *Activity) bool {
	for p := t.ParentOf(a); p != nil; p = t.ParentOf(p) {
		if p.Ordinal == anc.Ordinal {
			return true
		}
	}
	return false
}

// CommonAncestor returns the lowest common ancestor of a and b. When one is
// an ancestor of the other (or the same activity), that activity is returned.
func (t *Tree) CommonAncestor(a, b *Activity) *Activity {
	for a.Depth > b.Depth {
		a = t.ParentOf(a)
	}
	for b.Depth > a.Depth {
		b = t.ParentOf(b)
	}
	for a.Ordinal != b.Ordinal {
		a = t.ParentOf(a)
		b = t.ParentOf(b)
	}
	return a
}

// NextSibling returns the sibling immediately after a in document order, or
// nil if a is the last child or the root.
func (t *Tree) NextSibling(a *Activity) *Activity {
	p := t.ParentOf(a)
	if p == nil || a.Position+1 >= len(p.Children) {
		return nil
	}
	return t.arena[p.Children[a.Position+1]]
}

// PrevSibling returns the sibling immediately before a in document order, or
// nil if a is the first child or the root.
func (t *Tree) PrevSibling(a *Activity) *Activity {
	p := t.ParentOf(a)
	if p == nil || a.Position == 0 {
		return nil
	}
	return t.arena[p.Children[a.Position-1]]
}

// ExitedBy returns the activities a move from "from" to "to" exits: from
// itself plus every ancestor of from strictly below their common ancestor,
// innermost first.
func (t *Tree) ExitedBy(from, to *Activity) []*Activity {
	lca := t.CommonAncestor(from, to)
	var exited []*Activity
	for p := from; p != nil && p.Ordinal != lca.Ordinal; p = t.ParentOf(p) {
		exited = append(exited, p)
	}
	return exited
}
