package storage

import (
	dbm "github.com/cometbft/cometbft-db"
)

// CometKV wraps a cometbft-db dbm.DB so the bridge's components can run
// against any of that library's backends (goleveldb, badger, memdb, ...)
// without depending on a specific one. Grounded on the teacher's
// kvdb.KVAdapter, which wraps the same interface for its ledger store.
type CometKV struct {
	db dbm.DB
}

// NewCometKV wraps an already-open cometbft-db database.
func NewCometKV(db dbm.DB) *CometKV {
	return &CometKV{db: db}
}

func (c *CometKV) Get(key []byte) ([]byte, error) {
	if c.db == nil {
		return nil, nil
	}
	return c.db.Get(key)
}

func (c *CometKV) Set(key, value []byte) error {
	if c.db == nil {
		return nil
	}
	return c.db.SetSync(key, value)
}

func (c *CometKV) Delete(key []byte) error {
	if c.db == nil {
		return nil
	}
	return c.db.DeleteSync(key)
}
