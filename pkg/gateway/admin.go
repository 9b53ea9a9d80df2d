package gateway

import "github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"

// ChangeOwner reassigns the owner-controlled switches to a new address.
// Only the current owner may call this.
func (g *Gateway) ChangeOwner(canonicalSender []byte, newOwner string) error {
	cfg, err := ReadConfig(g.kv)
	if err != nil {
		return err
	}
	if cfg.Owner != string(canonicalSender) {
		return bridgeerr.ErrNotOwner
	}
	cfg.Owner = newOwner
	return WriteConfig(g.kv, cfg)
}

// ChangeFinanceAdmin reassigns the finance-admin collaborator reference.
// Only the current finance admin may call this.
func (g *Gateway) ChangeFinanceAdmin(canonicalSender []byte, newFinanceAdmin ContractReference) error {
	cfg, err := ReadConfig(g.kv)
	if err != nil {
		return err
	}
	if cfg.FinanceAdmin.Address != string(canonicalSender) {
		return bridgeerr.ErrNotFinanceAdmin
	}
	cfg.FinanceAdmin = newFinanceAdmin
	return WriteConfig(g.kv, cfg)
}

// SetSuspensionSwitch replaces the suspension switch state. Only the owner
// may call this.
func (g *Gateway) SetSuspensionSwitch(canonicalSender []byte, s SuspensionSwitch) error {
	cfg, err := ReadConfig(g.kv)
	if err != nil {
		return err
	}
	if cfg.Owner != string(canonicalSender) {
		return bridgeerr.ErrNotOwner
	}
	return WriteSuspensionSwitch(g.kv, s)
}
