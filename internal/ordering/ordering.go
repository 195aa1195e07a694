// Package ordering maintains dense, gapless zero-based ranks over a
// partitioned collection. It is used for both stage order (partition =
// pipeline) and deal order (partition = stage). Planning is pure; the
// store executes each Window as one bounded UPDATE, so a move touches
// only the rows between the old and new position.
package ordering

// Window is a contiguous inclusive rank range [Lo, Hi] to be shifted by
// Delta. An empty window (Hi < Lo) means no rows move.
type Window struct {
	Lo    int
	Hi    int
	Delta int
}

func (w Window) Empty() bool {
	return w.Hi < w.Lo
}

// ClampIndex clamps a requested insertion index to [0, n], where n is the
// partition size at insertion time.
func ClampIndex(target, n int) int {
	if target < 0 {
		return 0
	}
	if target > n {
		return n
	}
	return target
}

// RemovalWindow closes the gap left by removing the item at oldIdx from a
// partition of count items.
func RemovalWindow(oldIdx, count int) Window {
	return Window{Lo: oldIdx + 1, Hi: count - 1, Delta: -1}
}

// InsertionWindow opens a gap at target in a partition of count items.
func InsertionWindow(target, count int) Window {
	return Window{Lo: target, Hi: count - 1, Delta: +1}
}

// MoveWindow plans a same-partition relocation from oldIdx to newIdx.
// Only the ranks strictly between the two positions shift.
func MoveWindow(oldIdx, newIdx int) Window {
	switch {
	case newIdx > oldIdx:
		return Window{Lo: oldIdx + 1, Hi: newIdx, Delta: -1}
	case newIdx < oldIdx:
		return Window{Lo: newIdx, Hi: oldIdx - 1, Delta: +1}
	default:
		return Window{Lo: 0, Hi: -1}
	}
}

// Reinsert removes id from ids (if present) and inserts it at target,
// clamped to the post-removal size. The in-memory counterpart of the SQL
// windows, used by client-side views.
func Reinsert(ids []string, id string, target int) []string {
	out := make([]string, 0, len(ids)+1)
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	target = ClampIndex(target, len(out))
	out = append(out, "")
	copy(out[target+1:], out[target:])
	out[target] = id
	return out
}

// IsDense reports whether ranks are exactly {0..n-1} with no duplicates.
func IsDense(ranks []int) bool {
	seen := make([]bool, len(ranks))
	for _, r := range ranks {
		if r < 0 || r >= len(ranks) || seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}
