package branchedlist

import (
	"reflect"
	"testing"
)

// stopValue mimics the shape of values merged by the route resolver:
// a payload plus the service type used for conflict resolution.
type stopValue struct {
	name        string
	serviceType int
}

// preferLowerServiceType is the conflict resolver used throughout the
// route resolver: the branch with the lower service type wins.
func preferLowerServiceType(a, b stopValue) stopValue {
	if b.serviceType < a.serviceType {
		return b
	}
	return a
}

// makeBranch builds a BranchedList from a key sequence, one value per key
func makeBranch(branchID, serviceType int, keys ...string) *BranchedList[string, stopValue] {
	l := New[string, stopValue](branchID, preferLowerServiceType)
	for _, k := range keys {
		l.Add(k, stopValue{name: k + "/branch", serviceType: serviceType})
	}
	return l
}

func branchIDSet(ids ...int) map[int]bool {
	set := make(map[int]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func TestKeyIndexOf(t *testing.T) {
	l := makeBranch(0, 1, "A", "B", "C", "B")

	cases := []struct {
		key        string
		searchFrom int
		expected   int
	}{
		{"A", 0, 0},
		{"B", 0, 1},
		{"B", 2, 3},
		{"C", 0, 2},
		{"C", 3, -1},
		{"Z", 0, -1},
	}
	for _, c := range cases {
		if got := l.KeyIndexOf(c.key, c.searchFrom); got != c.expected {
			t.Errorf("KeyIndexOf(%q, %d) = %d, expected %d", c.key, c.searchFrom, got, c.expected)
		}
	}
}

func TestMergeIntoEmpty(t *testing.T) {
	l := New[string, stopValue](0, preferLowerServiceType)
	l.Merge(makeBranch(1, 2, "A", "B", "C"))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "C"}) {
		t.Errorf("keys after merging into empty list = %v", got)
	}
}

func TestMergeEmptyIsNoOp(t *testing.T) {
	l := makeBranch(0, 1, "A", "B")
	l.Merge(New[string, stopValue](1, preferLowerServiceType))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("keys after merging an empty list = %v", got)
	}
}

func TestMergeIdenticalBranches(t *testing.T) {
	l := makeBranch(0, 1, "A", "B", "C", "D")
	l.Merge(makeBranch(1, 1, "A", "B", "C", "D"))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("merging a sequence with a copy of itself changed it: %v", got)
	}
	for i, v := range l.ValuesWithBranchIDs() {
		if !reflect.DeepEqual(v.BranchIDs, branchIDSet(0, 1)) {
			t.Errorf("entry %d branch ids = %v, expected both branches", i, v.BranchIDs)
		}
	}
}

func TestMergeDivergentPrefix(t *testing.T) {
	// The second branch starts elsewhere but joins the trunk at C.
	l := makeBranch(0, 1, "A", "B", "C", "D")
	l.Merge(makeBranch(1, 2, "X", "Y", "C", "D"))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "X", "Y", "C", "D"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestMergeDivergentTail(t *testing.T) {
	// The second branch extends past the end of the trunk.
	l := makeBranch(0, 1, "A", "B", "C")
	l.Merge(makeBranch(1, 2, "B", "C", "D", "E"))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "C", "D", "E"}) {
		t.Errorf("keys = %v", got)
	}
}

func TestMergeNoSharedKeysAppends(t *testing.T) {
	l := makeBranch(0, 1, "A", "B")
	l.Merge(makeBranch(1, 2, "X", "Y"))

	if got := l.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "X", "Y"}) {
		t.Errorf("keys = %v", got)
	}
}

// TestMergeDivergentMiddle pins the anchor-and-splice behavior on the
// canonical three-branch route shape: a trunk, a variant with a different
// middle stop, and a variant extending the end. The variant stop is
// spliced in right where it diverged, tagged only with its own branch,
// and the trunk's relative order is untouched.
func TestMergeDivergentMiddle(t *testing.T) {
	trunk := makeBranch(0, 1, "A", "B", "C", "D")
	variant := makeBranch(1, 2, "A", "B", "X", "D")
	extension := makeBranch(2, 3, "A", "B", "C", "D", "E")

	trunk.Merge(variant)
	trunk.Merge(extension)

	if got := trunk.Keys(); !reflect.DeepEqual(got, []string{"A", "B", "C", "X", "D", "E"}) {
		t.Fatalf("keys = %v", got)
	}

	byKey := map[string]ValueWithBranchIDs[stopValue]{}
	for i, v := range trunk.ValuesWithBranchIDs() {
		byKey[trunk.Keys()[i]] = v
	}

	// X belongs to the variant branch alone
	if !reflect.DeepEqual(byKey["X"].BranchIDs, branchIDSet(1)) {
		t.Errorf("X branch ids = %v, expected only the variant branch", byKey["X"].BranchIDs)
	}
	// C was never seen by the variant branch
	if !reflect.DeepEqual(byKey["C"].BranchIDs, branchIDSet(0, 2)) {
		t.Errorf("C branch ids = %v", byKey["C"].BranchIDs)
	}
	// the shared trunk accumulated all three branches
	if !reflect.DeepEqual(byKey["A"].BranchIDs, branchIDSet(0, 1, 2)) {
		t.Errorf("A branch ids = %v", byKey["A"].BranchIDs)
	}
	// E belongs to the extension alone
	if !reflect.DeepEqual(byKey["E"].BranchIDs, branchIDSet(2)) {
		t.Errorf("E branch ids = %v", byKey["E"].BranchIDs)
	}
}

func TestMergeConflictPrefersLowerServiceType(t *testing.T) {
	a := makeBranch(0, 1, "A", "B", "K")
	b := makeBranch(1, 2, "K", "C")
	a.Merge(b)

	idx := a.KeyIndexOf("K", 0)
	if idx < 0 {
		t.Fatal("K missing after merge")
	}
	if got := a.Values()[idx]; got.serviceType != 1 {
		t.Errorf("K resolved to serviceType %d, expected 1", got.serviceType)
	}

	// Merging in the other order must give the same winner.
	c := makeBranch(1, 2, "K", "C")
	d := makeBranch(0, 1, "A", "B", "K")
	c.Merge(d)
	idx = c.KeyIndexOf("K", 0)
	if got := c.Values()[idx]; got.serviceType != 1 {
		t.Errorf("reversed merge resolved K to serviceType %d, expected 1", got.serviceType)
	}
}

// TestMergeCompleteness checks that for an arbitrary pile of branches the
// merged key set is exactly the union of the inputs, with no duplicates,
// and that each branch's own relative stop order survives.
func TestMergeCompleteness(t *testing.T) {
	branches := [][]string{
		{"A", "B", "C", "D", "E"},
		{"A", "B", "X", "D"},
		{"P", "Q", "B", "C"},
		{"C", "D", "E", "F", "G"},
		{"H"},
	}

	merged := New[string, stopValue](0, preferLowerServiceType)
	for i, keys := range branches {
		merged.Merge(makeBranch(i, i+1, keys...))
	}

	// Key set equals the union of the inputs, each key exactly once.
	want := map[string]int{}
	for _, keys := range branches {
		for _, k := range keys {
			want[k]++
		}
	}
	seen := map[string]int{}
	for _, k := range merged.Keys() {
		seen[k]++
	}
	for k := range want {
		if seen[k] != 1 {
			t.Errorf("key %s appears %d times in the merge", k, seen[k])
		}
	}
	if len(seen) != len(want) {
		t.Errorf("merged key set has %d keys, union has %d", len(seen), len(want))
	}

	// Relative order within each input branch is preserved.
	position := map[string]int{}
	for i, k := range merged.Keys() {
		position[k] = i
	}
	for b, keys := range branches {
		for i := 1; i < len(keys); i++ {
			if position[keys[i-1]] >= position[keys[i]] {
				t.Errorf("branch %d order broken: %s appears after %s", b, keys[i-1], keys[i])
			}
		}
	}
}
