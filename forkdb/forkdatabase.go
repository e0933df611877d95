package forkdb

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/huangminghuang/leap/infrastructure/logger"
	"github.com/huangminghuang/leap/util/binaryserializer"
	"github.com/huangminghuang/leap/util/blockid"
	"github.com/huangminghuang/leap/wire"
)

// ForkDBFilename is the name of the fork database file inside the data
// directory.
const ForkDBFilename = "fork_db.dat"

// MaxBlockNum is the trim bound that keeps a fetched branch whole.
const MaxBlockNum uint32 = ^uint32(0)

// ForkDatabase is the facade over the two fork database variants. It starts
// in the legacy regime and, either by loading an instant-finality file or
// through SwitchFromLegacy, moves one way into the instant-finality regime.
//
// The retired legacy tree is intentionally kept alive after the switch:
// other goroutines may still be blocked on its mutex or holding its nodes.
// No further writes are issued to it, and Close only writes the active tree.
type ForkDatabase struct {
	dataDir string

	mtx        sync.Mutex // guards legacy, legacyDB, finalityDB
	legacy     bool
	legacyDB   *ForkDB
	finalityDB *ForkDB
}

// New creates a fork database facade rooted at the given data directory, in
// the legacy regime with an empty tree.
func New(dataDir string) *ForkDatabase {
	return &ForkDatabase{
		dataDir:  dataDir,
		legacy:   true,
		legacyDB: NewLegacyForkDB(),
	}
}

func (db *ForkDatabase) filePath() string {
	return filepath.Join(db.dataDir, ForkDBFilename)
}

// active returns the fork database tree of the current regime.
func (db *ForkDatabase) active() *ForkDB {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	if db.legacy {
		return db.legacyDB
	}
	return db.finalityDB
}

// Open restores the fork database from the file inside the data directory,
// if one exists. The file's magic number decides which variant is
// constructed: a legacy file keeps the facade in the legacy regime, an
// instant-finality file switches it over before loading.
func (db *ForkDatabase) Open(validator Validator) error {
	defer logger.LogAndMeasureExecutionTime(log, "ForkDatabase.Open")()

	err := os.MkdirAll(db.dataDir, 0700)
	if err != nil {
		return errors.WithStack(err)
	}

	path := db.filePath()
	magic, err := peekMagic(path)
	if os.IsNotExist(errors.Cause(err)) {
		return nil
	}
	if err != nil {
		return err
	}

	switch magic {
	case LegacyForkDBMagic:
		return db.legacyDB.Open(path, validator)

	case FinalityForkDBMagic:
		db.mtx.Lock()
		db.finalityDB = NewFinalityForkDB()
		db.legacy = false
		db.mtx.Unlock()
		return db.finalityDB.Open(path, validator)

	default:
		return errors.Wrapf(ErrBadMagic, "%s: got %#08x, expected %#08x or %#08x",
			path, magic, LegacyForkDBMagic, FinalityForkDBMagic)
	}
}

// peekMagic reads the leading magic number of the file at path.
func peekMagic(path string) (uint32, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer file.Close()

	magic, err := binaryserializer.Uint32(file)
	if err != nil {
		return 0, errors.Wrapf(ErrCorrupt, "%s: %s", path, err)
	}
	return magic, nil
}

// Close writes the active tree out to the fork database file.
func (db *ForkDatabase) Close() error {
	defer logger.LogAndMeasureExecutionTime(log, "ForkDatabase.Close")()
	return db.active().Close(db.filePath())
}

// InLegacyRegime returns whether the facade still dispatches to the legacy
// tree.
func (db *ForkDatabase) InLegacyRegime() bool {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return db.legacy
}

// SwitchFromLegacy transitions the facade into the instant-finality regime.
// The legacy chain head becomes, converted, the root and chain head of the
// fresh instant-finality tree. The legacy tree itself stays allocated until
// process exit and receives no further writes; there is no need to close it
// because fork database files are removed on open.
func (db *ForkDatabase) SwitchFromLegacy() error {
	db.mtx.Lock()
	defer db.mtx.Unlock()

	if !db.legacy {
		return errors.New("fork database already switched from legacy")
	}

	chainHead := db.legacyDB.ChainHead()
	if chainHead == nil {
		return errors.New("no legacy chain head to switch from")
	}
	legacyHead, ok := chainHead.(*LegacyBlockState)
	if !ok {
		return errors.Errorf("legacy chain head has unexpected type %T", chainHead)
	}

	newHead := FinalityBlockStateFromLegacy(legacyHead)
	db.finalityDB = NewFinalityForkDB()
	db.legacy = false
	db.finalityDB.SetChainHead(newHead)
	db.finalityDB.Reset(newHead)
	return nil
}

// Reset discards the active tree and starts over with the given root.
func (db *ForkDatabase) Reset(root BlockRef) {
	db.active().Reset(root)
}

// Add links a new block state into the active tree.
func (db *ForkDatabase) Add(n BlockRef, ignoreDuplicate bool) error {
	return db.active().Add(n, ignoreDuplicate)
}

// MarkValid flags a block state of the active tree as successfully executed.
func (db *ForkDatabase) MarkValid(n BlockRef) error {
	return db.active().MarkValid(n)
}

// RollbackHeadToRoot invalidates every entry of the active tree.
func (db *ForkDatabase) RollbackHeadToRoot() {
	db.active().RollbackHeadToRoot()
}

// AdvanceRoot moves the active tree's root forward.
func (db *ForkDatabase) AdvanceRoot(id blockid.Hash) error {
	return db.active().AdvanceRoot(id)
}

// Remove prunes a block and its descendants from the active tree.
func (db *ForkDatabase) Remove(id blockid.Hash) error {
	return db.active().Remove(id)
}

// GetBlock returns the active tree's index entry with the given id, or nil.
func (db *ForkDatabase) GetBlock(id blockid.Hash) BlockRef {
	return db.active().GetBlock(id)
}

// GetBlockHeader returns the active tree's node with the given id, including
// the root, or nil.
func (db *ForkDatabase) GetBlockHeader(id blockid.Hash) BlockRef {
	return db.active().GetBlockHeader(id)
}

// Root returns the active tree's last finalized block.
func (db *ForkDatabase) Root() BlockRef {
	return db.active().Root()
}

// Head returns the active tree's preferred valid tip.
func (db *ForkDatabase) Head() BlockRef {
	return db.active().Head()
}

// PendingHead returns the active tree's preferred tip, valid or not.
func (db *ForkDatabase) PendingHead() BlockRef {
	return db.active().PendingHead()
}

// ChainHead returns the externally tracked chain head of the active tree.
func (db *ForkDatabase) ChainHead() BlockRef {
	return db.active().ChainHead()
}

// SetChainHead records the externally tracked chain head on the active tree.
func (db *ForkDatabase) SetChainHead(n BlockRef) {
	db.active().SetChainHead(n)
}

// FetchBranch walks from h toward the active tree's root.
func (db *ForkDatabase) FetchBranch(h blockid.Hash, trimAfterBlockNum uint32) []BlockRef {
	return db.active().FetchBranch(h, trimAfterBlockNum)
}

// SearchOnBranch returns the node at height blockNum on the branch ending at
// h, or nil.
func (db *ForkDatabase) SearchOnBranch(h blockid.Hash, blockNum uint32) BlockRef {
	return db.active().SearchOnBranch(h, blockNum)
}

// FetchBranchFrom returns the two branch suffixes above the lowest common
// ancestor of two tips.
func (db *ForkDatabase) FetchBranchFrom(first, second blockid.Hash) ([]BlockRef, []BlockRef, error) {
	return db.active().FetchBranchFrom(first, second)
}

// FetchBranchFromHead returns the raw blocks of the branch ending at the
// active tree's head, highest block first.
func (db *ForkDatabase) FetchBranchFromHead() []*wire.SignedBlock {
	forkDB := db.active()

	head := forkDB.Head()
	if head == nil {
		return nil
	}

	branch := forkDB.FetchBranch(head.BlockID(), MaxBlockNum)
	blocks := make([]*wire.SignedBlock, 0, len(branch))
	for _, n := range branch {
		blocks = append(blocks, n.SignedBlock())
	}
	return blocks
}
