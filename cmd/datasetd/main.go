// Command datasetd is the thin process wrapper around this module: it
// wires the chain adapter, storage, block client, and reconciliation
// pipeline together, runs the backward sweep, then the live-sync loop,
// until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/spf13/cobra"

	"github.com/datatrails/go-merklelog-ipfs/blockstore"
	"github.com/datatrails/go-merklelog-ipfs/chain"
	"github.com/datatrails/go-merklelog-ipfs/internal/config"
	"github.com/datatrails/go-merklelog-ipfs/internal/logging"
	"github.com/datatrails/go-merklelog-ipfs/pipeline"
	"github.com/datatrails/go-merklelog-ipfs/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "datasetd",
		Short: "materialize and serve the chain-backed append-only dataset",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newRepublishCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "run the backward sweep then the live-sync loop",
		RunE:  runFn,
	}
}

func newRepublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "republish",
		Short: "re-pin the entire trail log to the configured publisher",
		RunE:  republishFn,
	}
}

func build(ctx context.Context) (*pipeline.PipelineState, *store.JSONFile, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("datasetd: loading config: %w", err)
	}

	log, err := logging.New()
	if err != nil {
		return nil, nil, nil, err
	}
	log = log.WithServiceName("datasetd")

	kv := store.NewJSONFile(cfg.StoragePath)
	if err := kv.Open(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("datasetd: opening storage: %w", err)
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.ChainRPCURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("datasetd: dialing chain rpc: %w", err)
	}

	throttle := chain.NewThrottle(chain.ThrottleConfig{
		MinDelay:      cfg.ChainMinDelay,
		BackoffFactor: cfg.ChainBackoffFactor,
		MaxRetries:    cfg.ChainMaxRetries,
	})
	chainClient := chain.NewClient(rpcClient, ethcommon.HexToAddress(cfg.ContractAddress), throttle)

	var publisher *blockstore.Client
	if cfg.BlockGatewayURL != "" {
		blockSource := newHTTPBlockSource(cfg.BlockGatewayURL)

		probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
		err := blockSource.Ping(probeCtx)
		cancel()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("datasetd: block gateway %s unreachable: %w", cfg.BlockGatewayURL, err)
		}

		caps := blockstore.Capabilities{Put: cfg.EnablePut, Pin: cfg.EnablePin, Provide: cfg.EnableProvide}
		var pinner *httpPinner
		if cfg.PinServiceURL != "" {
			pinner = newHTTPPinner(cfg.PinServiceURL)
		}
		if caps.Put && !probeWriteAPI(ctx, blockSource, pinner, caps, log) {
			log.Warnf("datasetd: write API unreachable at startup, downgrading put/pin/provide capabilities")
			caps = blockstore.Capabilities{}
		}

		var breaker *blockstore.Breaker
		var pinnerIface blockstore.Pinner
		if caps.Pin && pinner != nil {
			breaker = blockstore.NewBreaker(cfg.BreakerThreshold)
			pinnerIface = pinner
		}
		publisher, err = blockstore.New(blockSource, caps, pinnerIface, breaker)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("datasetd: constructing block client: %w", err)
		}
	}

	pipelineCfg := pipeline.Config{
		Chain:  chainClient,
		Store:  kv,
		Blocks: publisher,
		Log:    log,
		Window: cfg.SweepWindow,
		WSURL:  cfg.ChainWSURL,
		Poll:   cfg.PollInterval,
	}
	if publisher != nil {
		pipelineCfg.Publisher = publisher
	}

	return pipeline.New(pipelineCfg), kv, log, nil
}

func runFn(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, kv, log, err := build(ctx)
	if err != nil {
		return err
	}
	defer kv.Close(context.Background())

	log.Infof("datasetd: starting backward sweep")
	if err := p.BackwardSweep(ctx); err != nil {
		return fmt.Errorf("datasetd: backward sweep: %w", err)
	}

	log.Infof("datasetd: starting live sync")
	if err := p.StartLiveSync(ctx); err != nil {
		return fmt.Errorf("datasetd: live sync: %w", err)
	}
	return nil
}

func republishFn(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	p, kv, log, err := build(ctx)
	if err != nil {
		return err
	}
	defer kv.Close(context.Background())

	report, err := p.Republish(ctx)
	if err != nil {
		return err
	}
	log.Infof("datasetd: republish complete: %d succeeded, %d failed", report.Succeeded, report.Failed)
	return nil
}

// probeWriteAPI reports whether the write-capable endpoints a deployment
// configured are actually reachable, so build can downgrade put/pin/
// provide instead of trusting the static env flags (spec §7: "failure to
// reach the write API downgrades capabilities ... but is not fatal").
// Reachability of the block gateway's read path is checked separately and
// fatally, before this is ever called.
func probeWriteAPI(ctx context.Context, blockSource *httpBlockSource, pinner *httpPinner, caps blockstore.Capabilities, log logging.Logger) bool {
	probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
	defer cancel()
	if err := blockSource.Ping(probeCtx); err != nil {
		log.Warnf("datasetd: block gateway write probe failed: %v", err)
		return false
	}

	if caps.Pin || caps.Provide {
		if pinner == nil {
			log.Warnf("datasetd: pin/provide requested with no pin service url configured")
			return false
		}
		probeCtx, cancel := context.WithTimeout(ctx, startupProbeTimeout)
		defer cancel()
		if err := pinner.Ping(probeCtx); err != nil {
			log.Warnf("datasetd: pin service write probe failed: %v", err)
			return false
		}
	}
	return true
}

// startupProbeTimeout bounds each reachability probe build runs against the
// block gateway and pin service before trusting their capability flags.
const startupProbeTimeout = 5 * time.Second

// shutdownTimeout is not used by any call site: runFn and republishFn close
// storage with context.Background(), so Close runs without a deadline.
const shutdownTimeout = 5 * time.Second
