package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/datatrails/go-merklelog-ipfs/chain"
	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
	"github.com/datatrails/go-merklelog-ipfs/resolver"
	"github.com/datatrails/go-merklelog-ipfs/store"
)

// BackwardSweep implements sync_backwards_from_latest: it walks chain logs
// backward in windows from the current previous_append_block, inverting
// the MMR at each step and writing leaf records, while racing a cancelable
// resolve_tree against the content-addressed store after every window so
// a fully-available DAG short-circuits the rest of the log walk (spec
// §4.7).
func (p *PipelineState) BackwardSweep(ctx context.Context) error {
	state, peakDigests, err := p.cfg.Chain.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: reading chain state: %w", err)
	}
	peaks, err := chainPeaksToCids(state, peakDigests)
	if err != nil {
		return err
	}

	curPeaks := peaks
	curRoot, err := (mmr.Mmr{Peaks: curPeaks}).Root()
	if err != nil {
		return err
	}

	oldestIndex := int64(state.LeafCount) - 1
	curBlock := uint64(state.PreviousAppendBlock)
	deployBlock := uint64(state.DeployBlock)

	H, err := store.HighestContiguousLeafIndexWithData(ctx, p.cfg.Store)
	if err != nil {
		return err
	}

	if oldestIndex <= H {
		// Local data already covers everything the chain reports.
		return p.finishSweep(ctx, H)
	}

	g, gctx := errgroup.WithContext(ctx)
	var (
		mu      sync.Mutex
		winner  *attemptResult
		cancels []context.CancelFunc
	)

	cancelAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
	}

	fire := func(root dagcid.Cid, atIndex int64) {
		actx, cancel := context.WithCancel(gctx)
		mu.Lock()
		cancels = append(cancels, cancel)
		mu.Unlock()

		g.Go(func() error {
			defer cancel()
			leaves, err := resolver.ResolveTree(actx, root, p.cfg.Blocks)
			if err != nil {
				// NotFound and Cancelled mean "not yet": the window-walk
				// fallback below will fill these leaves instead. CidMismatch
				// is fatal to this fetch specifically (spec §7), but it is
				// still only this attempt that loses the race, not the
				// sweep, so it is logged rather than returned.
				if errors.Is(err, dagcbor.ErrCidMismatch) && p.cfg.Log != nil {
					p.cfg.Log.Warnf("pipeline: resolve_tree at %s: %v, abandoning this attempt", root, err)
				}
				return nil
			}
			mu.Lock()
			if winner == nil {
				winner = &attemptResult{leaves: leaves, oldestIndex: atIndex}
			}
			mu.Unlock()
			return nil
		})
	}

	fire(curRoot, oldestIndex+1)

	for oldestIndex > H {
		windowFrom := deployBlock
		if curBlock+1 > p.cfg.Window {
			if lo := curBlock - p.cfg.Window + 1; lo > windowFrom {
				windowFrom = lo
			}
		}

		logs, err := p.cfg.Chain.LeafAppendedLogs(ctx, windowFrom, curBlock)
		if err != nil {
			return fmt.Errorf("pipeline: fetching logs [%d,%d]: %w", windowFrom, curBlock, err)
		}
		sort.Slice(logs, func(i, j int) bool { return logs[i].LeafIndex > logs[j].LeafIndex })

		for _, ev := range logs {
			if int64(ev.LeafIndex) != oldestIndex {
				return fmt.Errorf("%w: got leaf_index %d, expected %d", ErrOutOfOrder, ev.LeafIndex, oldestIndex)
			}

			previousRoot, previousPeaks, err := mmr.PreviousRootAndPeaks(curPeaks, ev.NewData, ev.LeftInputs)
			if err != nil {
				return err
			}

			rec := domain.LeafRecord{
				NewData:                     ev.NewData,
				Event:                       evCopy(ev),
				BlockNumber:                 ev.BlockNumber,
				RootCidBeforeAppend:         previousRoot,
				PeaksWithHeightsBeforeAppend: peaksWithHeights(previousPeaks, uint64(oldestIndex)),
			}
			if err := store.PutLeafRecord(ctx, p.cfg.Store, uint64(ev.LeafIndex), rec); err != nil {
				return err
			}

			curPeaks = previousPeaks
			curRoot = previousRoot
			oldestIndex--

			if p.cfg.Log != nil {
				p.cfg.Log.Debugf("pipeline: committed leaf %d from backward sweep", ev.LeafIndex)
			}
		}

		mu.Lock()
		w := winner
		mu.Unlock()
		if w != nil {
			cancelAll()
			return p.settleSweepWinner(ctx, *w)
		}

		if oldestIndex <= H {
			break
		}

		fire(curRoot, oldestIndex+1)

		if windowFrom == deployBlock {
			break
		}
		curBlock = windowFrom - 1
	}

	mu.Lock()
	w := winner
	mu.Unlock()
	if w != nil {
		cancelAll()
		return p.settleSweepWinner(ctx, *w)
	}

	cancelAll()
	if err := g.Wait(); err != nil {
		return err
	}

	mu.Lock()
	w = winner
	mu.Unlock()
	if w != nil {
		return p.settleSweepWinner(ctx, *w)
	}
	return p.finishSweep(ctx, oldestIndex)
}

type attemptResult struct {
	leaves      [][]byte
	oldestIndex int64
}

// settleSweepWinner writes every leaf resolve_tree recovered below its
// oldestIndex, runs the gap detector, and persists.
func (p *PipelineState) settleSweepWinner(ctx context.Context, w attemptResult) error {
	if int64(len(w.leaves)) != w.oldestIndex {
		return fmt.Errorf("%w: resolved %d leaves, expected %d", ErrGapFillExhausted, len(w.leaves), w.oldestIndex)
	}
	for i, payload := range w.leaves {
		has, err := store.HasLeaf(ctx, p.cfg.Store, uint64(i))
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if err := store.PutLeafRecord(ctx, p.cfg.Store, uint64(i), domain.LeafRecord{NewData: payload}); err != nil {
			return err
		}
	}
	return p.finishSweep(ctx, w.oldestIndex-1)
}

// finishSweep runs the gap detector up to upTo and persists storage.
func (p *PipelineState) finishSweep(ctx context.Context, upTo int64) error {
	if upTo >= 0 {
		gaps, err := store.Gaps(ctx, p.cfg.Store, uint64(upTo))
		if err != nil {
			return err
		}
		if len(gaps) > 0 {
			return fmt.Errorf("%w: gaps remain below index %d: %v", mmr.ErrInvariant, upTo, gaps)
		}
	}
	return p.cfg.Store.Persist(ctx)
}

// chainPeaksToCids wraps the raw peak digests the chain returned as CIDs,
// in left-to-right order, with no rehash (spec §4.4).
func chainPeaksToCids(state chain.State, peakDigests [][32]byte) ([]dagcid.Cid, error) {
	peaks, err := chain.PeaksWithHeights(state, peakDigests)
	if err != nil {
		return nil, err
	}
	cids := make([]dagcid.Cid, len(peaks))
	for i, p := range peaks {
		cids[i] = p.Cid
	}
	return cids, nil
}

// peaksWithHeights zips cids with the heights implied by leafCountBefore,
// the accumulator's leaf count at the point those peaks were current.
func peaksWithHeights(cids []dagcid.Cid, leafCountBefore uint64) []mmr.Peak {
	heights := mmr.PeakHeights(leafCountBefore)
	out := make([]mmr.Peak, len(cids))
	for i, c := range cids {
		out[i] = mmr.Peak{Cid: c, Height: heights[i]}
	}
	return out
}

func evCopy(ev domain.AppendedEvent) *domain.AppendedEvent {
	e := ev
	return &e
}
