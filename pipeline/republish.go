package pipeline

import (
	"context"

	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/datatrails/go-merklelog-ipfs/store"
)

// RepublishReport counts the outcome of an operator-initiated re-pin.
type RepublishReport struct {
	Succeeded int
	Failed    int
}

// Republish iterates the trail log from index 0 to dag:trail:maxIndex,
// re-verifies each pair against its own CID, and pushes it to the
// publisher. A single failure is counted, logged if a logger is
// configured, and never aborts the rest of the walk (spec §4.7).
func (p *PipelineState) Republish(ctx context.Context) (RepublishReport, error) {
	var report RepublishReport
	if p.cfg.Publisher == nil {
		return report, ErrNoPublisher
	}

	trail, err := store.ReadTrail(ctx, p.cfg.Store)
	if err != nil {
		return report, err
	}

	for _, pair := range trail {
		if err := dagcbor.VerifyCidChecked(pair.Encoded, pair.Cid); err != nil {
			report.Failed++
			if p.cfg.Log != nil {
				p.cfg.Log.Warnf("pipeline: republish: %s failed verification: %v", pair.Cid, err)
			}
			continue
		}
		if err := p.cfg.Publisher.Put(ctx, pair.Cid, pair.Encoded); err != nil {
			report.Failed++
			if p.cfg.Log != nil {
				p.cfg.Log.Warnf("pipeline: republish: putting %s: %v", pair.Cid, err)
			}
			continue
		}
		if err := p.cfg.Publisher.Provide(ctx, pair.Cid); err != nil && p.cfg.Log != nil {
			p.cfg.Log.Warnf("pipeline: republish: providing %s: %v", pair.Cid, err)
		}
		report.Succeeded++
	}

	return report, nil
}
