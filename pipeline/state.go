package pipeline

import (
	"context"
	"time"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/chain"
	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/internal/logging"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
	"github.com/datatrails/go-merklelog-ipfs/resolver"
	"github.com/datatrails/go-merklelog-ipfs/store"
)

// ChainSource is the subset of *chain.Client the pipeline depends on,
// narrowed to keep this package testable against a fake.
type ChainSource interface {
	State(ctx context.Context) (chain.State, [][32]byte, error)
	RootCid(ctx context.Context) (dagcid.Cid, error)
	LeafAppendedLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.AppendedEvent, error)
	LeafAppendedAt(ctx context.Context, blockNumber uint64) (domain.AppendedEvent, error)
}

// Publisher is the content-addressed write path a committed trail is
// pushed through, capability permitting. A *blockstore.Client satisfies
// this.
type Publisher interface {
	Put(ctx context.Context, c dagcid.Cid, encoded []byte) error
	Provide(ctx context.Context, c dagcid.Cid) error
}

// DefaultWindow is the default number of blocks the backward sweep fetches
// logs for per request.
const DefaultWindow = 1000

// DefaultPollInterval is the polling loop's default cadence (spec §4.7:
// "Polling uses an interval of 10 s by default").
const DefaultPollInterval = 10 * time.Second

// Config bundles the dependencies and tunables a PipelineState needs.
type Config struct {
	Chain     ChainSource
	Store     store.KV
	Blocks    resolver.BlockSource
	Publisher Publisher
	Log       logging.Logger
	Window    uint64
	WSURL     string
	Poll      time.Duration
}

// PipelineState owns the reconciliation cursors and the in-memory MMR, and
// drives both the backward sweep and the live-sync loop. The MMR instance
// is used by live sync only; the backward sweep tracks its own local peaks
// and does not read or append to it. Leaf commits flow through notifier so that Subscribe gives callers a
// dynamic, runtime add/remove subscription (spec §6 data.subscribe/
// unsubscribe) built directly on the MMR engine's own observer set.
type PipelineState struct {
	cfg      Config
	mmr      *mmr.Mmr
	notifier mmr.Notifier

	LastProcessedBlock       uint64
	HighestCommittedLeafIndex int64
	LiveSyncRunning          bool

	sub *chain.HeadSubscription
}

// New returns a PipelineState ready to run BackwardSweep then StartLiveSync.
func New(cfg Config) *PipelineState {
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Poll == 0 {
		cfg.Poll = DefaultPollInterval
	}
	m := mmr.New()
	return &PipelineState{cfg: cfg, mmr: &m, HighestCommittedLeafIndex: -1}
}

// Mmr returns the pipeline's live accumulator state.
func (p *PipelineState) Mmr() *mmr.Mmr { return p.mmr }
