package gateway

import "time"

// Event is a structured log record emitted alongside a state-changing
// operation (spec §4.6 "Supplemented: Log events"). The external log
// collaborator itself is out of scope; only the event shapes are part of
// this component's contract.
type Event interface {
	eventName() string
}

// MintStarted is emitted once a mint address has been issued.
type MintStarted struct {
	Time    time.Time
	Address string
}

func (MintStarted) eventName() string { return "MintStarted" }

// MintCompleted is emitted once a deposit has been verified and minted.
type MintCompleted struct {
	Time    time.Time
	Address string
	Amount  uint64
	TxID    string
}

func (MintCompleted) eventName() string { return "MintCompleted" }

// ReleaseStarted is emitted once a release request has been registered.
type ReleaseStarted struct {
	Time       time.Time
	RequestKey [32]byte
	Amount     uint64
}

func (ReleaseStarted) eventName() string { return "ReleaseStarted" }

// ReleaseCompleted is emitted once a release has been claimed and signed.
type ReleaseCompleted struct {
	Time       time.Time
	RequestKey [32]byte
	TxID       string
	FeePerVB   uint64
}

func (ReleaseCompleted) eventName() string { return "ReleaseCompleted" }

// ReleaseIncorrectAmountBTCEvent is emitted when a mis-sent deposit is
// returned to the sender.
type ReleaseIncorrectAmountBTCEvent struct {
	Time        time.Time
	Amount      uint64
	ReleaseFrom string
	ReleaseTo   string
	TxID        string
}

func (ReleaseIncorrectAmountBTCEvent) eventName() string { return "ReleaseIncorrectAmountBTC" }
