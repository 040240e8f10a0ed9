// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DUSK NETWORK. All rights reserved.

// Package config is the single process-wide configuration accessor, in
// the style of the teacher's config.Get().Mempool.PoolType call sites.
package config

import (
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/magiconair/properties"
)

// MempoolConfig controls pool backend selection and admission limits.
type MempoolConfig struct {
	// PoolType selects the Pool implementation ("hashmap" is the only
	// one this module ships).
	PoolType string
	// MaxSizeMB is the allocation ceiling that triggers the "mempool is
	// full" log on the idle tick.
	MaxSizeMB int
	// HashMapPreallocTxs sizes the HashMap's initial bucket allocation.
	HashMapPreallocTxs int
	// CoinbaseSize is the reserved per-block budget for the coinbase
	// transaction, overriding the 1490-byte placeholder from spec.md §6.
	CoinbaseSize int
	// PropagateTimeout is the interval between transaction advertisements
	// for the one propagation limiter shared by all transactions, parsed
	// with time.ParseDuration; empty disables the limiter.
	PropagateTimeout string
	// PropagateBurst is the token-bucket burst size for the propagation
	// limiter.
	PropagateBurst int
}

// SyncConfig tunes the sync master's phase deadlines and peer selection.
type SyncConfig struct {
	HashesOverallTimeoutSeconds int
	HashesMovingTimeoutSeconds  int
	BlocksOverallTimeoutSeconds int
	BlocksMovingTimeoutSeconds  int
	MaxPeerLeadBlocks            uint32
}

// Configuration is the decoded process configuration.
type Configuration struct {
	Mempool MempoolConfig
	Sync    SyncConfig
}

func defaults() Configuration {
	return Configuration{
		Mempool: MempoolConfig{
			PoolType:           "hashmap",
			MaxSizeMB:          100,
			HashMapPreallocTxs: 100,
			CoinbaseSize:       1490,
		},
		Sync: SyncConfig{
			HashesOverallTimeoutSeconds: 5,
			HashesMovingTimeoutSeconds:  5,
			BlocksOverallTimeoutSeconds: 30,
			BlocksMovingTimeoutSeconds:  4,
			MaxPeerLeadBlocks:           10,
		},
	}
}

var (
	mu     sync.RWMutex
	global = defaults()
)

// Get returns the process-wide Configuration.
func Get() Configuration {
	mu.RLock()
	defer mu.RUnlock()

	return global
}

// LoadTOML decodes path (TOML) over the defaults and installs the result
// as the process-wide Configuration. Call before anything reads Get().
func LoadTOML(path string) error {
	cfg := defaults()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return err
	}

	mu.Lock()
	global = cfg
	mu.Unlock()

	return nil
}

// OverrideFromProperties layers .properties key=value overrides (e.g.
// from a deployment-specific file) on top of whatever was loaded by
// LoadTOML, matching the teacher's pairing of BurntSushi/toml for the
// base file with magiconair/properties for environment overrides.
func OverrideFromProperties(path string) error {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if v, ok := p.Get("mempool.pool_type"); ok {
		global.Mempool.PoolType = v
	}

	if v, ok := p.Get("mempool.max_size_mb"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			global.Mempool.MaxSizeMB = n
		}
	}

	return nil
}
