package gateway

import (
	"encoding/json"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

var keyConfig = []byte("config")

// ReadConfig loads the gateway's current runtime configuration: the
// mutable owner/finance-admin fields live here, seeded once at
// instantiation from the YAML file LoadConfig reads.
func ReadConfig(kv storage.KV) (*Config, error) {
	raw, err := kv.Get(keyConfig)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, bridgeerr.ErrNotInitialized
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, bridgeerr.ErrSerialization
	}
	return &cfg, nil
}

// WriteConfig persists cfg as the gateway's current configuration.
func WriteConfig(kv storage.KV, cfg *Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return bridgeerr.ErrSerialization
	}
	return kv.Set(keyConfig, raw)
}
