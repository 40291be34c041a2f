package budget

import "errors"

// NodeKind tags a node of the built tree.
type NodeKind int

const (
	KindChapter NodeKind = iota
	KindItem
)

func (k NodeKind) String() string {
	switch k {
	case KindChapter:
		return "chapter"
	case KindItem:
		return "item"
	default:
		return "unknown"
	}
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, bool) {
	switch s {
	case "chapter":
		return KindChapter, true
	case "item":
		return KindItem, true
	}
	return 0, false
}

// Node is a tagged view over one position of the tree. Exactly one of
// Chapter and Item is set, matching Kind.
type Node struct {
	Kind    NodeKind
	Chapter *Chapter
	Item    *Item

	// Parent is the enclosing chapter, nil for top-level chapters.
	Parent *Chapter

	// Depth is 1 for top-level chapters.
	Depth int
}

// Code returns the code of whichever variant is set.
func (n Node) Code() string {
	if n.Kind == KindItem {
		return n.Item.Code
	}
	return n.Chapter.Code
}

// SkipChapter can be returned by a WalkFunc on a chapter node to skip its
// contents.
var SkipChapter = errors.New("skip chapter")

// WalkFunc is called for every node visited by Walk.
type WalkFunc func(n Node) error

// Walk visits the tree depth-first. Inside a chapter, items come before
// subchapters, matching the order writers emit them in. Any error other than
// SkipChapter stops the walk and is returned.
func Walk(b *Budget, fn WalkFunc) error {
	for _, c := range b.Chapters {
		if err := walkChapter(c, nil, 1, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkChapter(c *Chapter, parent *Chapter, depth int, fn WalkFunc) error {
	err := fn(Node{Kind: KindChapter, Chapter: c, Parent: parent, Depth: depth})
	if errors.Is(err, SkipChapter) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, item := range c.Items {
		if err := fn(Node{Kind: KindItem, Item: item, Parent: c, Depth: depth + 1}); err != nil && !errors.Is(err, SkipChapter) {
			return err
		}
	}
	for _, sub := range c.Subchapters {
		if err := walkChapter(sub, c, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}
