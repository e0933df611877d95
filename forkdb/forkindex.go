package forkdb

import (
	"sort"

	"github.com/huangminghuang/leap/util/blockid"
)

// forkIndex is the multi-indexed container backing a fork database tree. It
// keeps three views of the same node set in sync:
//
//   - byID: unique primary index, id -> node
//   - byPrev: parent multimap, parent id -> set of children
//   - byPreference: the fork-choice index, ordered by preferenceLess
//     (valid desc, irreversible num desc, block num desc, id asc), so the
//     first entry is the best valid candidate and the first invalid entry is
//     the best pending candidate.
type forkIndex struct {
	byID         map[blockid.Hash]BlockRef
	byPrev       map[blockid.Hash]blockRefSet
	byPreference []BlockRef
}

func newForkIndex() *forkIndex {
	return &forkIndex{
		byID:   make(map[blockid.Hash]BlockRef),
		byPrev: make(map[blockid.Hash]blockRefSet),
	}
}

func (idx *forkIndex) size() int {
	return len(idx.byID)
}

func (idx *forkIndex) clear() {
	idx.byID = make(map[blockid.Hash]BlockRef)
	idx.byPrev = make(map[blockid.Hash]blockRefSet)
	idx.byPreference = nil
}

// get returns the node with the given id, or nil if it is absent.
func (idx *forkIndex) get(id blockid.Hash) BlockRef {
	return idx.byID[id]
}

// children returns the ids of the immediate children of the given id.
func (idx *forkIndex) children(id blockid.Hash) []blockid.Hash {
	return idx.byPrev[id].ids()
}

// insert adds a node to all three views. It returns false without modifying
// anything if a node with the same id is already present.
func (idx *forkIndex) insert(n BlockRef) bool {
	id := n.BlockID()
	if _, ok := idx.byID[id]; ok {
		return false
	}
	idx.byID[id] = n

	children, ok := idx.byPrev[n.Previous()]
	if !ok {
		children = newBlockRefSet()
		idx.byPrev[n.Previous()] = children
	}
	children.add(n)

	pos := idx.searchPreference(n)
	idx.byPreference = append(idx.byPreference, nil)
	copy(idx.byPreference[pos+1:], idx.byPreference[pos:])
	idx.byPreference[pos] = n
	return true
}

// erase removes the node with the given id from all three views. It does
// nothing if the id is absent.
func (idx *forkIndex) erase(id blockid.Hash) {
	n, ok := idx.byID[id]
	if !ok {
		return
	}
	delete(idx.byID, id)

	if children, ok := idx.byPrev[n.Previous()]; ok {
		children.remove(id)
		if len(children) == 0 {
			delete(idx.byPrev, n.Previous())
		}
	}

	pos := idx.searchPreference(n)
	idx.byPreference = append(idx.byPreference[:pos], idx.byPreference[pos+1:]...)
}

// setValid flips the validity flag of an indexed node, repositioning it in
// the preference index.
func (idx *forkIndex) setValid(n BlockRef, validated bool) {
	if n.IsValid() == validated {
		return
	}
	pos := idx.searchPreference(n)
	idx.byPreference = append(idx.byPreference[:pos], idx.byPreference[pos+1:]...)

	n.setValid(validated)

	pos = idx.searchPreference(n)
	idx.byPreference = append(idx.byPreference, nil)
	copy(idx.byPreference[pos+1:], idx.byPreference[pos:])
	idx.byPreference[pos] = n
}

// invalidateAll clears the validity flag of every indexed node. Dropping the
// validity key can interleave the formerly-valid and formerly-invalid ranges,
// so the preference index is re-sorted afterwards.
func (idx *forkIndex) invalidateAll() {
	for _, n := range idx.byPreference {
		n.setValid(false)
	}
	sort.Slice(idx.byPreference, func(i, j int) bool {
		return preferenceLess(idx.byPreference[i], idx.byPreference[j])
	})
}

// best returns the most preferred entry (valid entries first), or nil when
// the index is empty.
func (idx *forkIndex) best() BlockRef {
	if len(idx.byPreference) == 0 {
		return nil
	}
	return idx.byPreference[0]
}

// bestUnvalidated returns the most preferred entry that has not been
// validated, or nil when every entry is valid.
func (idx *forkIndex) bestUnvalidated() BlockRef {
	boundary := idx.validBoundary()
	if boundary == len(idx.byPreference) {
		return nil
	}
	return idx.byPreference[boundary]
}

// validBoundary returns the position of the first invalid entry in the
// preference index. Valid entries sort strictly before invalid ones.
func (idx *forkIndex) validBoundary() int {
	return sort.Search(len(idx.byPreference), func(i int) bool {
		return !idx.byPreference[i].IsValid()
	})
}

// searchPreference returns the position of n in the preference index, or the
// position it should be inserted at. preferenceLess is a strict total order
// (ids are unique), so an indexed node is always found exactly.
func (idx *forkIndex) searchPreference(n BlockRef) int {
	return sort.Search(len(idx.byPreference), func(i int) bool {
		return !preferenceLess(idx.byPreference[i], n)
	})
}
