// Copyright 2025 BPI Labs

package ledger

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/merkle"
)

// KV is the minimal key-value contract Store needs from its backing
// database. pkg/kvdb.KVAdapter implements this against cometbft-db.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// Store provides append-only access to finalized blocks, indexed by
// height and by hash.
//
// CONCURRENCY: Store assumes single-writer access and is designed to be
// driven from the consensus engine's commit path only. A single mutex
// guards metadata updates; callers needing concurrent access from
// multiple goroutines must add their own synchronization above this.
type Store struct {
	mu sync.Mutex
	kv KV

	subMu     sync.Mutex
	subs      map[int]*blockSubscriber
	nextSubID int
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, subs: make(map[int]*blockSubscriber)}
}

// blockSubscriber tracks one StreamFrom consumer's delivery cursor.
// The replay goroutine StreamFrom starts and the live fan-out in
// Append both deliver through tryDeliver, so a block is pushed exactly
// once regardless of which path reaches it first. Live fan-out never
// blocks Append: a subscriber whose buffer is full has its cursor
// claimed and that block dropped, same as eventbus.Bus.Publish; later
// blocks keep arriving, so the caller sees a height gap and can call
// StreamFrom again from the missed height to recover it.
//
// Once replay catches up to the persisted tip, the replay goroutine
// must stay alive (and must not close ch) to receive whatever Append
// delivers live next. wake is how Append tells a caught-up replay loop
// to check again; closed is how cancel tells it to stop for good.
type blockSubscriber struct {
	mu     sync.Mutex
	next   uint64
	ch     chan *Block
	wake   chan struct{}
	closed chan struct{}
}

func (sub *blockSubscriber) tryDeliver(b *Block) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if b.Height != sub.next {
		return false
	}
	sub.next++
	return true
}

var (
	keyMeta         = []byte("ledger:meta") // -> storeMeta (latest height)
	keyBlockPrefix  = []byte("ledger:block:height:")
	keyHashPrefix   = []byte("ledger:block:hash:")
)

type storeMeta struct {
	LatestHeight uint64 `json:"latest_height"`
	HasBlocks    bool   `json:"has_blocks"`
}

func blockKeyByHeight(height uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, height)
	return append(append([]byte{}, keyBlockPrefix...), b...)
}

func blockKeyByHash(hash [32]byte) []byte {
	return append(append([]byte{}, keyHashPrefix...), hash[:]...)
}

// wireBlock is the JSON-persisted representation of a Block; canonical
// hashing of the header still goes through canon.Writer, JSON here is
// only the at-rest encoding for the KV value.
type wireBlock struct {
	Height       uint64    `json:"height"`
	PrevHash     string    `json:"prev_hash"`
	TxMerkleRoot string    `json:"tx_merkle_root"`
	StateRoot    string    `json:"state_root"`
	ReceiptsRoot string    `json:"receipts_root"`
	Timestamp    time.Time `json:"timestamp"`
	Proposer     string    `json:"proposer"`

	CommitHeaderHash string `json:"commit_header_hash"`
	CommitAggSig     []byte `json:"commit_agg_sig"`
	CommitBitmap     []byte `json:"commit_bitmap"`
	CommitRound      uint32 `json:"commit_round"`
}

func toWire(b *Block) *wireBlock {
	return &wireBlock{
		Height:           b.Height,
		PrevHash:         hex32(b.PrevHash),
		TxMerkleRoot:     hex32(b.TxMerkleRoot),
		StateRoot:        hex32(b.StateRoot),
		ReceiptsRoot:     hex32(b.ReceiptsRoot),
		Timestamp:        b.Timestamp,
		Proposer:         b.Proposer,
		CommitHeaderHash: hex32(b.BlsCommit.HeaderHash),
		CommitAggSig:     b.BlsCommit.AggregateSig,
		CommitBitmap:     b.BlsCommit.ValidatorBitmap,
		CommitRound:      b.BlsCommit.Round,
	}
}

func fromWire(w *wireBlock) (*Block, error) {
	prevHash, err := unhex32(w.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("decode prev_hash: %w", err)
	}
	txRoot, err := unhex32(w.TxMerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("decode tx_merkle_root: %w", err)
	}
	stateRoot, err := unhex32(w.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("decode state_root: %w", err)
	}
	receiptsRoot, err := unhex32(w.ReceiptsRoot)
	if err != nil {
		return nil, fmt.Errorf("decode receipts_root: %w", err)
	}
	headerHash, err := unhex32(w.CommitHeaderHash)
	if err != nil {
		return nil, fmt.Errorf("decode commit header hash: %w", err)
	}

	return &Block{
		Height:       w.Height,
		PrevHash:     prevHash,
		TxMerkleRoot: txRoot,
		StateRoot:    stateRoot,
		ReceiptsRoot: receiptsRoot,
		Timestamp:    w.Timestamp,
		Proposer:     w.Proposer,
		BlsCommit: BlsCommit{
			HeaderHash:      headerHash,
			AggregateSig:    w.CommitAggSig,
			ValidatorBitmap: w.CommitBitmap,
			Round:           w.CommitRound,
			Height:          w.Height,
		},
	}, nil
}

// Append persists a finalized block. It verifies prev_hash chains to
// height-1 and that the commit's header hash matches the block's own
// computed header hash; it does not re-verify the BLS signature itself
// (that is the consensus engine's job before calling Append).
func (s *Store) Append(b *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMeta()
	if err != nil {
		return fmt.Errorf("load ledger meta: %w", err)
	}

	if meta.HasBlocks {
		prev, err := s.getByHeightLocked(meta.LatestHeight)
		if err != nil {
			return fmt.Errorf("load previous block: %w", err)
		}
		if b.Height != meta.LatestHeight+1 {
			return fmt.Errorf("%w: got height %d, want %d", ErrChainBreak, b.Height, meta.LatestHeight+1)
		}
		if b.PrevHash != prev.Hash() {
			return fmt.Errorf("%w: prev_hash does not match block at height %d", ErrChainBreak, meta.LatestHeight)
		}
	} else if b.Height != 0 {
		return fmt.Errorf("%w: genesis block must be height 0, got %d", ErrChainBreak, b.Height)
	}

	if b.Hash() != b.BlsCommit.HeaderHash {
		return fmt.Errorf("%w: commit header hash does not match block header", ErrInvalidCommit)
	}

	wb := toWire(b)
	data, err := json.Marshal(wb)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}

	hash := b.Hash()
	if err := s.kv.Set(blockKeyByHeight(b.Height), data); err != nil {
		return fmt.Errorf("write block by height: %w", err)
	}
	if err := s.kv.Set(blockKeyByHash(hash), data); err != nil {
		return fmt.Errorf("write block by hash: %w", err)
	}

	meta.LatestHeight = b.Height
	meta.HasBlocks = true
	if err := s.saveMetaLocked(meta); err != nil {
		return err
	}

	s.notifySubscribers(b)
	return nil
}

// notifySubscribers fans the just-committed block out to every live
// StreamFrom subscriber that is caught up to it. A subscriber still
// replaying backlog skips the live push; its own replay loop will
// reach this height from the store instead.
func (s *Store) notifySubscribers(b *Block) {
	s.subMu.Lock()
	subs := make([]*blockSubscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		if sub.tryDeliver(b) {
			select {
			case sub.ch <- b:
			default:
				// Drop rather than block Append on a stalled subscriber;
				// the store itself remains the durable record and a new
				// StreamFrom call can always replay from here.
			}
		}
		// Wake a replay loop that was blocked waiting for the tip to
		// advance, whether or not this particular block was the one it
		// wanted; it re-checks its own cursor on wake.
		select {
		case sub.wake <- struct{}{}:
		default:
		}
	}
}

// StreamFrom returns a channel delivering blocks from fromHeight
// onward: first the already-persisted range, then every block Append
// commits afterward (a live block that finds the channel buffer full
// is skipped; see blockSubscriber), until ctx is cancelled or the returned cancel
// func is called. This is the fan-out consumption mechanism for
// downstream components (economy settlement, bank mesh, partner
// distribution) — they read finalized blocks through this channel
// instead of reaching into Store's fields directly.
func (s *Store) StreamFrom(ctx context.Context, fromHeight uint64) (<-chan *Block, func(), error) {
	sub := &blockSubscriber{
		next:   fromHeight,
		ch:     make(chan *Block, 64),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = sub
	s.subMu.Unlock()

	var stopOnce sync.Once
	cancel := func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
		stopOnce.Do(func() { close(sub.closed) })
	}

	go func() {
		defer close(sub.ch)
		for {
			sub.mu.Lock()
			height := sub.next
			sub.mu.Unlock()

			block, err := s.GetByHeight(height)
			if err != nil {
				// Caught up to the persisted tip: wait to be woken by
				// the next live Append rather than exiting, since a
				// subscriber must keep receiving blocks that arrive
				// after it catches up.
				select {
				case <-sub.wake:
					continue
				case <-sub.closed:
					return
				case <-ctx.Done():
					return
				}
			}

			if !sub.tryDeliver(block) {
				// a live Append already delivered this height.
				continue
			}

			select {
			case sub.ch <- block:
			case <-sub.closed:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub.ch, cancel, nil
}

// GetByHeight returns the block at the given height, or ErrNotFound.
func (s *Store) GetByHeight(height uint64) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getByHeightLocked(height)
}

func (s *Store) getByHeightLocked(height uint64) (*Block, error) {
	data, err := s.kv.Get(blockKeyByHeight(height))
	if err != nil {
		return nil, fmt.Errorf("read block: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	var wb wireBlock
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return fromWire(&wb)
}

// GetByHash returns the block with the given header hash, or ErrNotFound.
func (s *Store) GetByHash(hash [32]byte) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.kv.Get(blockKeyByHash(hash))
	if err != nil {
		return nil, fmt.Errorf("read block: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	var wb wireBlock
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return fromWire(&wb)
}

// LatestHeight returns the height of the most recently appended block.
func (s *Store) LatestHeight() (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := s.loadMeta()
	if err != nil {
		return 0, false, err
	}
	return meta.LatestHeight, meta.HasBlocks, nil
}

func (s *Store) loadMeta() (*storeMeta, error) {
	data, err := s.kv.Get(keyMeta)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return &storeMeta{}, nil
	}
	var m storeMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal ledger meta: %w", err)
	}
	return &m, nil
}

func (s *Store) saveMetaLocked(m *storeMeta) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal ledger meta: %w", err)
	}
	return s.kv.Set(keyMeta, data)
}

// ProveInclusion returns a Merkle inclusion proof for a transaction
// hash within the named block's tx_merkle_root, given the full ordered
// set of transaction leaf hashes for that block (the caller — the
// receipt pipeline's aggregation log — supplies these; the ledger
// store itself only persists the root, not the leaf set).
func ProveInclusion(txLeaves [][]byte, txHash []byte) (*merkle.InclusionProof, error) {
	tree, err := merkle.BuildTree(txLeaves)
	if err != nil {
		return nil, fmt.Errorf("build tx tree: %w", err)
	}
	return tree.GenerateProofByHash(txHash)
}

func blockHeaderHash(height uint64, prevHash, txRoot, stateRoot, receiptsRoot [32]byte, ts time.Time, proposer string) [32]byte {
	w := canon.NewWriter()
	w.U64(height).
		Bytes32(prevHash).
		Bytes32(txRoot).
		Bytes32(stateRoot).
		Bytes32(receiptsRoot).
		I64(ts.UnixNano()).
		Str(proposer)
	return canon.Hash(canon.DomainBlockHeader, w.Bytes())
}

func hex32(b [32]byte) string {
	return hex.EncodeToString(b[:])
}

func unhex32(s string) ([32]byte, error) {
	var out [32]byte
	if s == "" {
		return out, nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
