// Package config defines the process-level configuration struct this
// module's CLI entrypoint loads from the environment via
// github.com/caarlos0/env/v11. Parsing how a deployment chooses its chain
// RPC endpoint, contract address, or storage path is explicitly out of
// this system's scope; this struct exists so the CLI has somewhere to put
// the values it does need, in the shape the rest of this module consumes.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of environment-driven settings the CLI wires into
// the chain adapter, storage, block client, and pipeline.
type Config struct {
	ChainRPCURL      string        `env:"CHAIN_RPC_URL,required"`
	ChainWSURL       string        `env:"CHAIN_WS_URL"`
	ContractAddress  string        `env:"CONTRACT_ADDRESS,required"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"./dataset.json"`

	BlockGatewayURL string `env:"BLOCK_GATEWAY_URL"`
	PinServiceURL   string `env:"PIN_SERVICE_URL"`
	EnablePut       bool   `env:"ENABLE_PUT" envDefault:"false"`
	EnablePin       bool   `env:"ENABLE_PIN" envDefault:"false"`
	EnableProvide   bool   `env:"ENABLE_PROVIDE" envDefault:"false"`

	ChainMinDelay     time.Duration `env:"CHAIN_MIN_DELAY" envDefault:"200ms"`
	ChainBackoffFactor float64      `env:"CHAIN_BACKOFF_FACTOR" envDefault:"2.0"`
	ChainMaxRetries   uint          `env:"CHAIN_MAX_RETRIES" envDefault:"5"`

	SweepWindow  uint64        `env:"SWEEP_WINDOW" envDefault:"1000"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`

	BreakerThreshold uint32 `env:"BREAKER_THRESHOLD" envDefault:"5"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}
