// Package partition indexes one communication partition of the swarm in an
// unbalanced binary search tree.
//
// The tree is never rebalanced. Callers usually insert agents sorted by position,
// which can degrade it to a linear chain; the hop count of RouteMessage depends
// on that shape and is used as a latency proxy, so the shape is kept as is.
package partition

// KeyExtractor selects the integer key a tree is ordered by.
type KeyExtractor[T any] interface {
	ExtractKey(item T) int
}

// KeyFunc adapts an ordinary function to a KeyExtractor.
type KeyFunc[T any] func(item T) int

func (f KeyFunc[T]) ExtractKey(item T) int {
	return f(item)
}

type node[T any] struct {
	item  T
	left  *node[T]
	right *node[T]
}

// Index is a binary search tree over items of type T. The key extractor is
// fixed at construction and used by every operation.
type Index[T any] struct {
	keys KeyExtractor[T]
	root *node[T]
	size int
}

// New creates an empty index ordered by keys.
func New[T any](keys KeyExtractor[T]) *Index[T] {
	return &Index[T]{keys: keys}
}

// Len returns the number of inserted items.
func (x *Index[T]) Len() int {
	return x.size
}

// Insert descends from the root: a smaller key goes left, anything else,
// including an equal key, goes right. Duplicates are kept.
func (x *Index[T]) Insert(item T) {
	x.size++
	fresh := &node[T]{item: item}
	if x.root == nil {
		x.root = fresh
		return
	}

	key := x.keys.ExtractKey(item)
	current := x.root
	for {
		if key < x.keys.ExtractKey(current.item) {
			if current.left == nil {
				current.left = fresh
				return
			}
			current = current.left
		} else {
			if current.right == nil {
				current.right = fresh
				return
			}
			current = current.right
		}
	}
}

// Search returns the first item met on the descent whose key equals key.
// There is no backtracking: the walk stops at the first missing child.
func (x *Index[T]) Search(key int) (T, bool) {
	for current := x.root; current != nil; {
		currentKey := x.keys.ExtractKey(current.item)
		switch {
		case key == currentKey:
			return current.item, true
		case key < currentKey:
			current = current.left
		default:
			current = current.right
		}
	}
	var zero T
	return zero, false
}

// RouteMessage walks the same path as Search and returns every visited item,
// the target included when found. When the key is absent the partial path is
// still returned; found reports which case happened.
func (x *Index[T]) RouteMessage(targetKey int) (hops []T, found bool) {
	for current := x.root; current != nil; {
		hops = append(hops, current.item)
		currentKey := x.keys.ExtractKey(current.item)
		switch {
		case targetKey == currentKey:
			return hops, true
		case targetKey < currentKey:
			current = current.left
		default:
			current = current.right
		}
	}
	return hops, false
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (x *Index[T]) Depth() int {
	return depth(x.root)
}

func depth[T any](n *node[T]) int {
	if n == nil {
		return 0
	}
	return 1 + max(depth(n.left), depth(n.right))
}

