package gateway

import (
	"encoding/json"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/storage"
)

var keySuspensionSwitch = []byte("suspension_switch")

// ReadSuspensionSwitch loads the current switch state, defaulting to
// nothing-suspended if never set.
func ReadSuspensionSwitch(kv storage.KV) (SuspensionSwitch, error) {
	raw, err := kv.Get(keySuspensionSwitch)
	if err != nil {
		return SuspensionSwitch{}, err
	}
	if raw == nil {
		return SuspensionSwitch{}, nil
	}
	var s SuspensionSwitch
	if err := json.Unmarshal(raw, &s); err != nil {
		return SuspensionSwitch{}, bridgeerr.ErrSerialization
	}
	return s, nil
}

// WriteSuspensionSwitch persists a new switch state.
func WriteSuspensionSwitch(kv storage.KV, s SuspensionSwitch) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return bridgeerr.ErrSerialization
	}
	return kv.Set(keySuspensionSwitch, raw)
}
