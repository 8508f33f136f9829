package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/datatrails/go-merklelog-ipfs/chain"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
	"github.com/datatrails/go-merklelog-ipfs/store"
)

// LeafSubscriber is invoked with (index, hex(new_data)) after every leaf
// commit, mirroring the MMR engine's own subscribe shape one layer up.
type LeafSubscriber func(index uint64, newDataHex string)

// Subscribe registers fn to be called after every leaf commit, for as long
// as the returned handle is not invoked, and may be called at any time,
// including while BackwardSweep or StartLiveSync are already running
// (spec §6 data.subscribe(cb) -> unsubscribe). It is built directly on
// mmr.Notifier: every commit goes through AppendNotifying, so fn is driven
// off the same broadcast the MMR engine uses, decoded back into the
// (index, hex(new_data)) shape this package's callers expect.
func (p *PipelineState) Subscribe(fn LeafSubscriber) mmr.Unsubscribe {
	return p.notifier.Subscribe(func(trail mmr.Trail) {
		if len(trail) == 0 {
			return
		}
		node, err := dagcbor.DecodeNode(trail[0].Encoded)
		if err != nil {
			return
		}
		leaf, ok := node.(dagcbor.LeafNode)
		if !ok {
			return
		}
		// broadcast runs synchronously inside AppendNotifying, after
		// m.LeafCount has already advanced, so LeafCount-1 is exactly the
		// index of the leaf this trail belongs to.
		fn(p.mmr.LeafCount-1, hex.EncodeToString([]byte(leaf)))
	})
}

// StartLiveSync selects a WebSocket subscription or polling per spec §4.7
// and runs until ctx is cancelled. Both variants share processHead as
// their per-head action. Leaf subscribers are registered separately via
// Subscribe, not passed here.
func (p *PipelineState) StartLiveSync(ctx context.Context) error {
	p.LiveSyncRunning = true
	defer func() { p.LiveSyncRunning = false }()

	if p.cfg.WSURL != "" {
		subCtx, cancel := context.WithTimeout(ctx, chain.NewHeadsTimeout)
		sub, err := chain.SubscribeNewHeads(subCtx, p.cfg.WSURL)
		cancel()
		if err == nil {
			p.sub = sub
			return p.runSubscription(ctx)
		}
		if p.cfg.Log != nil {
			p.cfg.Log.Warnf("pipeline: newHeads subscription unavailable, falling back to polling: %v", err)
		}
	}
	return p.runPolling(ctx)
}

func (p *PipelineState) runSubscription(ctx context.Context) error {
	defer p.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-p.sub.Err():
			if !ok {
				return nil
			}
			return fmt.Errorf("pipeline: head subscription: %w", err)
		case _, ok := <-p.sub.Heads():
			if !ok {
				return nil
			}
			if err := p.processHead(ctx); err != nil {
				return err
			}
		}
	}
}

func (p *PipelineState) runPolling(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.processHead(ctx); err != nil {
				return err
			}
		}
	}
}

// processHead is the shared per-head action: read state, and if the
// chain's latest append block has advanced, fetch and process every
// LeafAppended log since the last processed block.
func (p *PipelineState) processHead(ctx context.Context) error {
	state, _, err := p.cfg.Chain.State(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: reading chain state: %w", err)
	}
	newest := uint64(state.PreviousAppendBlock)
	if newest <= p.LastProcessedBlock {
		return nil
	}

	events, err := p.cfg.Chain.LeafAppendedLogs(ctx, p.LastProcessedBlock+1, newest)
	if err != nil {
		return fmt.Errorf("pipeline: fetching logs [%d,%d]: %w", p.LastProcessedBlock+1, newest, err)
	}

	for _, ev := range events {
		if err := p.ProcessNewLeafEvent(ctx, ev); err != nil {
			return err
		}
	}
	p.LastProcessedBlock = newest

	if err := p.postSanityCheck(ctx, state); err != nil && p.cfg.Log != nil {
		p.cfg.Log.Warnf("pipeline: post-sanity check: %v", err)
	}
	return nil
}

// ProcessNewLeafEvent is process_new_leaf_event: it reconciles both the DB
// cursor and the MMR cursor against ev, walking back through the chain's
// previous_append_block pointers to fill any DB gap and replaying stored
// payloads to fill any MMR gap, then commits ev itself and notifies
// subscribers (spec §4.7).
func (p *PipelineState) ProcessNewLeafEvent(ctx context.Context, ev domain.AppendedEvent) error {
	hDB, err := store.HighestContiguousLeafIndexWithData(ctx, p.cfg.Store)
	if err != nil {
		return err
	}
	if int64(ev.LeafIndex) > hDB+1 {
		if err := p.walkBackFillDB(ctx, ev, hDB); err != nil {
			return err
		}
	} else if int64(ev.LeafIndex) <= hDB {
		return nil
	}

	if err := store.PutLeafRecord(ctx, p.cfg.Store, uint64(ev.LeafIndex), domain.LeafRecord{
		NewData:     ev.NewData,
		Event:       evCopy(ev),
		BlockNumber: ev.BlockNumber,
	}); err != nil {
		return err
	}

	hMMR := int64(p.mmr.LeafCount) - 1
	if int64(ev.LeafIndex) > hMMR {
		if err := p.commitToMMR(ctx, ev, hMMR); err != nil {
			return err
		}
	}

	return nil
}

// walkBackFillDB recursively fetches the single log for each intermediate
// leaf index between hDB+1 and ev.LeafIndex-1, via the chain of
// previous_append_block pointers, then commits them oldest-first.
func (p *PipelineState) walkBackFillDB(ctx context.Context, ev domain.AppendedEvent, hDB int64) error {
	if int64(ev.LeafIndex) <= hDB+1 {
		return nil
	}

	prevBlock := ev.PreviousAppendBlock
	prev, err := p.cfg.Chain.LeafAppendedAt(ctx, uint64(prevBlock))
	if err != nil {
		return fmt.Errorf("pipeline: gap-fill fetching leaf before %d: %w", ev.LeafIndex, err)
	}

	if err := p.walkBackFillDB(ctx, prev, hDB); err != nil {
		return err
	}

	return store.PutLeafRecord(ctx, p.cfg.Store, uint64(prev.LeafIndex), domain.LeafRecord{
		NewData:     prev.NewData,
		Event:       evCopy(prev),
		BlockNumber: prev.BlockNumber,
	})
}

// commitToMMR pulls any missing new_data from the DB to catch the MMR up
// to ev.LeafIndex-1, then commits ev itself via Append, persisting the
// trail and, capability permitting, pushing each pair to the
// content-addressed client.
func (p *PipelineState) commitToMMR(ctx context.Context, ev domain.AppendedEvent, hMMR int64) error {
	for i := hMMR + 1; i < int64(ev.LeafIndex); i++ {
		rec, ok, err := store.GetLeafRecord(ctx, p.cfg.Store, uint64(i))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: leaf %d missing from db while catching up mmr", mmr.ErrInvariant, i)
		}
		if err := p.commitOneLeaf(ctx, uint64(i), rec.NewData); err != nil {
			return err
		}
	}
	return p.commitOneLeaf(ctx, uint64(ev.LeafIndex), ev.NewData)
}

// commitOneLeaf appends payload to the MMR through AppendNotifying, which
// broadcasts the resulting trail to every subscriber registered via
// Subscribe before this call returns, then persists the trail and,
// capability permitting, pushes each pair to the content-addressed client.
func (p *PipelineState) commitOneLeaf(ctx context.Context, index uint64, payload []byte) error {
	result, err := p.mmr.AppendNotifying(&p.notifier, index, payload)
	if err != nil {
		return err
	}

	for _, pair := range result.Trail {
		if err := store.AppendTrailPair(ctx, p.cfg.Store, store.TrailPair{Cid: pair.Cid, Encoded: pair.Encoded}); err != nil && err != store.ErrDuplicateTrailCid {
			return err
		}
	}

	if p.cfg.Publisher != nil {
		for _, pair := range result.Trail {
			if err := p.cfg.Publisher.Put(ctx, pair.Cid, pair.Encoded); err != nil {
				if p.cfg.Log != nil {
					p.cfg.Log.Warnf("pipeline: publishing block %s: %v", pair.Cid, err)
				}
				continue
			}
			if err := p.cfg.Publisher.Provide(ctx, pair.Cid); err != nil {
				if p.cfg.Log != nil {
					p.cfg.Log.Warnf("pipeline: providing block %s: %v", pair.Cid, err)
				}
			}
		}
	}

	p.HighestCommittedLeafIndex = int64(index)
	return nil
}

func (p *PipelineState) postSanityCheck(ctx context.Context, state chain.State) error {
	if uint64(p.mmr.LeafCount) != state.LeafCount {
		return nil
	}
	chainRoot, err := p.cfg.Chain.RootCid(ctx)
	if err != nil {
		return err
	}
	localRoot, err := p.mmr.Root()
	if err != nil {
		return err
	}
	if !chainRoot.Equals(localRoot) {
		return fmt.Errorf("pipeline: local root %s disagrees with chain root %s", localRoot, chainRoot)
	}
	return nil
}

