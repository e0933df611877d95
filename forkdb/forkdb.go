package forkdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// ForkDB tracks every candidate extension of the chain beyond the last
// finalized block and selects the preferred head under the fork-choice order.
// It holds one variant of block state; the two variants are owned and
// dispatched by ForkDatabase.
//
// All methods are safe for concurrent access: every operation acquires the
// tree's mutex for the whole call. BlockRef handles returned to callers stay
// usable after the tree prunes them.
type ForkDB struct {
	mtx       sync.Mutex
	index     *forkIndex
	root      BlockRef
	head      BlockRef
	chainHead BlockRef
	magic     uint32
	codec     blockStateCodec
}

// NewLegacyForkDB creates an empty fork database over legacy block states.
func NewLegacyForkDB() *ForkDB {
	return &ForkDB{
		index: newForkIndex(),
		magic: LegacyForkDBMagic,
		codec: legacyCodec{},
	}
}

// NewFinalityForkDB creates an empty fork database over instant-finality
// block states.
func NewFinalityForkDB() *ForkDB {
	return &ForkDB{
		index: newForkIndex(),
		magic: FinalityForkDBMagic,
		codec: finalityCodec{},
	}
}

// Reset discards the tree and starts over with the given node as root. The
// root is marked valid and becomes the head. Only the root's header-state
// fields are consulted afterwards; its body may be nil.
func (f *ForkDB) Reset(root BlockRef) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.reset(root)
}

// reset implements Reset.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) reset(root BlockRef) {
	f.index.clear()
	root.setValid(true)
	f.root = root
	f.head = root
}

// Add links a new block state under its parent, which must already be the
// root or an index entry. The head moves if the best entry of the preference
// index is valid. If ignoreDuplicate is set, adding an already present id is
// a no-op; otherwise it fails with ErrDuplicateBlock.
func (f *ForkDB) Add(n BlockRef, ignoreDuplicate bool) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.add(n, ignoreDuplicate, false, nil)
}

// add implements Add. When validate is set (restoring from a file), blocks
// that declare protocol feature activations are checked against the
// validator before insertion.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) add(n BlockRef, ignoreDuplicate bool, validate bool, validator Validator) error {
	if f.root == nil {
		return errors.WithStack(ErrRootNotSet)
	}
	if n == nil {
		return errors.New("attempt to add nil block state")
	}

	prev := f.getBlockHeader(n.Previous())
	if prev == nil {
		return errors.Wrapf(ErrUnlinkableBlock, "block %s previous %s", n.BlockID(), n.Previous())
	}

	if validate {
		if data, ok := n.HeaderExts()[wire.ProtocolFeatureActivationID]; ok {
			pfa, err := wire.DeserializeProtocolFeatureActivation(data)
			if err != nil {
				return errors.Wrapf(ErrValidatorRejected, "block %s: %s", n.BlockID(), err)
			}
			if validator != nil {
				err = validator(n.Timestamp(), prev.ActivatedProtocolFeatures(), pfa.ProtocolFeatures)
				if err != nil {
					return errors.Wrapf(ErrValidatorRejected, "block %s: %s", n.BlockID(), err)
				}
			}
		}
	}

	if !f.index.insert(n) {
		if ignoreDuplicate {
			return nil
		}
		return errors.Wrapf(ErrDuplicateBlock, "id %s", n.BlockID())
	}

	// The head only moves when the best entry of the preference index is
	// valid; the validity of n itself is not consulted.
	if candidate := f.index.best(); candidate.IsValid() {
		f.head = candidate
	}
	return nil
}

// MarkValid flags an indexed block state as successfully executed and moves
// the head if the best valid entry now out-prefers it. Marking an already
// valid node is a no-op.
func (f *ForkDB) MarkValid(n BlockRef) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if n.IsValid() {
		return nil
	}

	indexed := f.index.get(n.BlockID())
	if indexed == nil {
		return errors.Wrapf(ErrBlockNotFound, "cannot mark block %s as valid", n.BlockID())
	}

	f.index.setValid(indexed, true)

	if candidate := f.index.best(); firstPreferred(candidate, f.head) {
		f.head = candidate
	}
	return nil
}

// RollbackHeadToRoot clears the validity flag of every index entry and moves
// the head back to root, forcing re-validation of all descendants.
func (f *ForkDB) RollbackHeadToRoot() {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	f.index.invalidateAll()
	f.head = f.root
}

// AdvanceRoot moves the root to a validated descendant of the current root,
// pruning everything that does not descend from it. The new root's fields
// are not mutated: callers may still hold references to it.
func (f *ForkDB) AdvanceRoot(id blockid.Hash) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.root == nil {
		return errors.WithStack(ErrRootNotSet)
	}

	newRoot := f.index.get(id)
	if newRoot == nil {
		return errors.Wrapf(ErrBlockNotFound, "cannot advance root to block %s", id)
	}
	if !newRoot.IsValid() {
		return errors.Errorf("cannot advance root to block %s which has not been validated", id)
	}

	// Collect the ancestry from the new root back to the current root. Each
	// collected id seeds a recursive removal, clearing out every branch that
	// did not descend from the new root.
	var blocksToRemove []blockid.Hash
	for b := newRoot; b != nil; {
		prev := b.Previous()
		blocksToRemove = append(blocksToRemove, prev)
		b = f.index.get(prev)
		if b == nil && prev != f.root.BlockID() {
			return errors.Errorf("invariant violation: orphaned branch was present in fork database")
		}
	}

	// The new root is erased from the index individually rather than with
	// remove so that the blocks branching off of it survive.
	f.index.erase(id)

	for _, blockID := range blocksToRemove {
		err := f.remove(blockID)
		if err != nil {
			return err
		}
	}

	f.root = newRoot
	return nil
}

// Remove prunes a block and all of its descendants from the tree. It fails
// with ErrWouldRemoveHead, mutating nothing, if the current head is inside
// the doomed subtree.
func (f *ForkDB) Remove(id blockid.Hash) error {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.root == nil {
		return errors.WithStack(ErrRootNotSet)
	}
	return f.remove(id)
}

// remove implements Remove as a breadth-first enumeration of the subtree
// followed by the erasures, so the head check completes before any mutation.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) remove(id blockid.Hash) error {
	removeQueue := []blockid.Hash{id}
	headID := f.head.BlockID()

	for i := 0; i < len(removeQueue); i++ {
		if removeQueue[i] == headID {
			return errors.Wrapf(ErrWouldRemoveHead, "block %s", id)
		}
		removeQueue = append(removeQueue, f.index.children(removeQueue[i])...)
	}

	for _, blockID := range removeQueue {
		f.index.erase(blockID)
	}
	return nil
}

// GetBlock returns the index entry with the given id, or nil. The root is
// not an index entry.
func (f *ForkDB) GetBlock(id blockid.Hash) BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.getBlock(id)
}

// getBlock implements GetBlock.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) getBlock(id blockid.Hash) BlockRef {
	return f.index.get(id)
}

// GetBlockHeader returns the node with the given id, including the root, or
// nil.
func (f *ForkDB) GetBlockHeader(id blockid.Hash) BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.getBlockHeader(id)
}

// getBlockHeader implements GetBlockHeader.
//
// This function MUST be called with the fork database mutex held.
func (f *ForkDB) getBlockHeader(id blockid.Hash) BlockRef {
	if f.root != nil && f.root.BlockID() == id {
		return f.root
	}
	return f.index.get(id)
}

// Root returns the last finalized block, or nil before Reset.
func (f *ForkDB) Root() BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.root
}

// Head returns the currently preferred valid tip. The head is the root when
// no valid index entry beats it.
func (f *ForkDB) Head() BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.head
}

// PendingHead returns the best not-yet-validated candidate if it out-prefers
// the current head, and the head otherwise.
func (f *ForkDB) PendingHead() BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	candidate := f.index.bestUnvalidated()
	if candidate != nil && !candidate.IsValid() && firstPreferred(candidate, f.head) {
		return candidate
	}
	return f.head
}

// ChainHead returns the externally tracked chain head, which the controller
// maintains independently of fork choice.
func (f *ForkDB) ChainHead() BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.chainHead
}

// SetChainHead records the externally tracked chain head.
func (f *ForkDB) SetChainHead(n BlockRef) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.chainHead = n
}

// FetchBranch walks from h toward the root and returns, highest block first,
// every node on the way whose height does not exceed trimAfterBlockNum. The
// walk stops when it falls off the tree, so the root itself is excluded.
func (f *ForkDB) FetchBranch(h blockid.Hash, trimAfterBlockNum uint32) []BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	var branch []BlockRef
	for s := f.getBlock(h); s != nil; s = f.getBlock(s.Previous()) {
		if s.BlockNum() <= trimAfterBlockNum {
			branch = append(branch, s)
		}
	}
	return branch
}

// SearchOnBranch walks from h toward the root and returns the node at height
// blockNum, or nil if the branch does not reach it.
func (f *ForkDB) SearchOnBranch(h blockid.Hash, blockNum uint32) BlockRef {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	for s := f.getBlock(h); s != nil; s = f.getBlock(s.Previous()) {
		if s.BlockNum() == blockNum {
			return s
		}
	}
	return nil
}

// FetchBranchFrom returns, for two tips in the tree, the two branch suffixes
// that end just above the tips' lowest common ancestor. Equal inputs yield
// two empty branches.
func (f *ForkDB) FetchBranchFrom(first, second blockid.Hash) ([]BlockRef, []BlockRef, error) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.root == nil {
		return nil, nil, errors.WithStack(ErrRootNotSet)
	}

	var firstBranch, secondBranch []BlockRef

	resolve := func(id blockid.Hash) BlockRef {
		if f.root.BlockID() == id {
			return f.root
		}
		return f.getBlock(id)
	}

	firstNode := resolve(first)
	if firstNode == nil {
		return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", first)
	}
	secondNode := resolve(second)
	if secondNode == nil {
		return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", second)
	}

	for firstNode.BlockNum() > secondNode.BlockNum() {
		firstBranch = append(firstBranch, firstNode)
		prev := firstNode.Previous()
		firstNode = resolve(prev)
		if firstNode == nil {
			return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", prev)
		}
	}

	for secondNode.BlockNum() > firstNode.BlockNum() {
		secondBranch = append(secondBranch, secondNode)
		prev := secondNode.Previous()
		secondNode = resolve(prev)
		if secondNode == nil {
			return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", prev)
		}
	}

	if firstNode.BlockID() == secondNode.BlockID() {
		return firstBranch, secondBranch, nil
	}

	for firstNode.Previous() != secondNode.Previous() {
		firstBranch = append(firstBranch, firstNode)
		secondBranch = append(secondBranch, secondNode)
		firstPrev := firstNode.Previous()
		firstNode = f.getBlock(firstPrev)
		if firstNode == nil {
			return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", firstPrev)
		}
		secondPrev := secondNode.Previous()
		secondNode = f.getBlock(secondPrev)
		if secondNode == nil {
			return nil, nil, errors.Wrapf(ErrBlockNotFound, "block %s does not exist", secondPrev)
		}
	}

	firstBranch = append(firstBranch, firstNode)
	secondBranch = append(secondBranch, secondNode)
	return firstBranch, secondBranch, nil
}
