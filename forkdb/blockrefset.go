package forkdb

import (
	"strings"

	"github.com/huangminghuang/leap/util/blockid"
)

// blockRefSet implements a basic unsorted set of blocks keyed by id.
type blockRefSet map[blockid.Hash]BlockRef

// newBlockRefSet creates a new, empty blockRefSet.
func newBlockRefSet() blockRefSet {
	return map[blockid.Hash]BlockRef{}
}

// add adds a block to this blockRefSet.
func (bs blockRefSet) add(block BlockRef) {
	bs[block.BlockID()] = block
}

// remove removes a block id from this blockRefSet, if it exists.
// Does nothing if this set does not contain the id.
func (bs blockRefSet) remove(id blockid.Hash) {
	delete(bs, id)
}

// contains returns true iff this set contains the given id.
func (bs blockRefSet) contains(id blockid.Hash) bool {
	_, ok := bs[id]
	return ok
}

// ids returns the ids of the blocks in this set.
func (bs blockRefSet) ids() []blockid.Hash {
	ids := make([]blockid.Hash, 0, len(bs))
	for id := range bs {
		ids = append(ids, id)
	}
	return ids
}

func (bs blockRefSet) String() string {
	ids := []string{}
	for id := range bs {
		ids = append(ids, id.String())
	}
	return strings.Join(ids, ",")
}
