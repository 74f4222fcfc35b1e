// Package branchedlist implements an ordered-sequence merge engine.
//
// A BranchedList holds one ordered sequence of keyed entries, each tagged
// with the set of branch IDs that contributed it. Merging another list
// aligns the two sequences on their earliest shared key (the anchor),
// splices divergent segments around it and recurses on the remainder, so
// that N partially-overlapping sequences collapse into a single sequence
// containing every distinct key exactly once, with per-key branch tags.
package branchedlist

// Entry is an immutable node of a BranchedList, tagging which source
// branches contributed its key.
type Entry[K comparable, V any] struct {
	Key       K
	Value     V
	BranchIDs map[int]bool
}

// merge returns a copy of the entry with a new value and the union of
// branch IDs.
func (e Entry[K, V]) merge(value V, branchIds map[int]bool) Entry[K, V] {
	union := make(map[int]bool, len(e.BranchIDs)+len(branchIds))
	for id := range e.BranchIDs {
		union[id] = true
	}
	for id := range branchIds {
		union[id] = true
	}
	return Entry[K, V]{Key: e.Key, Value: value, BranchIDs: union}
}

// ValueWithBranchIDs pairs a merged value with the union of branch IDs
// that touched its key.
type ValueWithBranchIDs[V any] struct {
	Value     V
	BranchIDs map[int]bool
}

// ConflictResolve picks the surviving value when two branches provide an
// entry for the same key.
type ConflictResolve[V any] func(a, b V) V

// BranchedList is a single branch's ordered sequence, mergeable with
// sibling branches. The zero value is not usable, use New.
type BranchedList[K comparable, V any] struct {
	entries         []Entry[K, V]
	branchID        int
	conflictResolve ConflictResolve[V]
}

// New creates an empty BranchedList for the given branch ID.
// A nil conflictResolve keeps the existing value on conflicts.
func New[K comparable, V any](branchID int, conflictResolve ConflictResolve[V]) *BranchedList[K, V] {
	if conflictResolve == nil {
		conflictResolve = func(a, _ V) V { return a }
	}
	return &BranchedList[K, V]{
		branchID:        branchID,
		conflictResolve: conflictResolve,
	}
}

// Add appends one entry tagged with this list's branch ID.
func (l *BranchedList[K, V]) Add(key K, value V) {
	l.entries = append(l.entries, Entry[K, V]{
		Key:       key,
		Value:     value,
		BranchIDs: map[int]bool{l.branchID: true},
	})
}

// Len returns the number of entries.
func (l *BranchedList[K, V]) Len() int {
	return len(l.entries)
}

// KeyIndexOf returns the first index at or after searchFrom whose entry's
// key equals key, or -1 if no such entry exists.
func (l *BranchedList[K, V]) KeyIndexOf(key K, searchFrom int) int {
	for i := searchFrom; i < len(l.entries); i++ {
		if l.entries[i].Key == key {
			return i
		}
	}
	return -1
}

// match scans other in order and returns the first (selfIndex, otherIndex)
// pair such that other's key already exists in l at or after searchFrom.
// This is the anchor point of a merge. Returns ok=false when the two
// sequences share no key.
func (l *BranchedList[K, V]) match(other *BranchedList[K, V], searchFrom int) (selfIndex, otherIndex int, ok bool) {
	for i, entry := range other.entries {
		if indexOf := l.KeyIndexOf(entry.Key, searchFrom); indexOf >= 0 {
			return indexOf, i, true
		}
	}
	return 0, 0, false
}

// insertAll splices entries into l at index at.
func (l *BranchedList[K, V]) insertAll(at int, entries []Entry[K, V]) {
	l.entries = append(l.entries[:at], append(append([]Entry[K, V]{}, entries...), l.entries[at:]...)...)
}

// Merge folds other into l:
//
//  1. If other is empty this is a no-op; if l is empty, l takes over
//     other's entries wholesale.
//  2. The anchor (earliest key of other already present in l) is located.
//     Without an anchor, other is appended at the end, or spliced at
//     searchFrom on recursive continuations, so unmatched middle segments
//     land where they diverged instead of at the very end.
//  3. The anchored entry is replaced by the conflict-resolved value,
//     tagged with both branches.
//  4. Everything in other before the anchor (a divergent prefix unique to
//     other) is spliced in immediately before the anchor.
//  5. The remainder of other after the anchor is merged recursively,
//     searching onward from the anchor.
func (l *BranchedList[K, V]) Merge(other *BranchedList[K, V]) {
	l.merge(other, 0, false)
}

func (l *BranchedList[K, V]) merge(other *BranchedList[K, V], searchFrom int, addToFrontIfNotFound bool) {
	if other.Len() == 0 {
		return
	}
	if l.Len() == 0 {
		l.entries = append(l.entries, other.entries...)
		return
	}
	selfIndex, otherIndex, ok := l.match(other, searchFrom)
	if !ok {
		if addToFrontIfNotFound {
			l.insertAll(searchFrom, other.entries)
		} else {
			l.entries = append(l.entries, other.entries...)
		}
		return
	}
	entry := l.entries[selfIndex]
	resolved := l.conflictResolve(entry.Value, other.entries[otherIndex].Value)
	l.entries[selfIndex] = entry.merge(resolved, other.entries[otherIndex].BranchIDs)
	l.insertAll(selfIndex, other.entries[:otherIndex])

	rest := &BranchedList[K, V]{
		entries:         other.entries[otherIndex+1:],
		branchID:        other.branchID,
		conflictResolve: other.conflictResolve,
	}
	if rest.Len() > 0 {
		l.merge(rest, selfIndex+1, true)
	}
}

// Values returns the merged values in order.
func (l *BranchedList[K, V]) Values() []V {
	values := make([]V, len(l.entries))
	for i, entry := range l.entries {
		values[i] = entry.Value
	}
	return values
}

// Keys returns the merged keys in order.
func (l *BranchedList[K, V]) Keys() []K {
	keys := make([]K, len(l.entries))
	for i, entry := range l.entries {
		keys[i] = entry.Key
	}
	return keys
}

// ValuesWithBranchIDs returns the merged values paired with the union of
// branch IDs that touched each key across all Merge calls.
func (l *BranchedList[K, V]) ValuesWithBranchIDs() []ValueWithBranchIDs[V] {
	values := make([]ValueWithBranchIDs[V], len(l.entries))
	for i, entry := range l.entries {
		values[i] = ValueWithBranchIDs[V]{Value: entry.Value, BranchIDs: entry.BranchIDs}
	}
	return values
}
