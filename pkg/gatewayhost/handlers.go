package gatewayhost

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/google/uuid"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
	"github.com/shinobi-protocol/secret-btc-sub000/pkg/spv"
)

func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handlers exposes some of the gateway's user-facing operations over HTTP
// (RequestMintAddress, RequestReleaseBtc, CreateViewingKey,
// ReleaseBtcByOwner, plus a health check), in the request/response JSON
// style pkg/server's handlers use. VerifyMintTx, ReleaseIncorrectAmountBTC
// and ClaimReleasedBtc have no handler.
type Handlers struct {
	host    *Host
	network spv.Network
}

// NewHandlers wraps host's gateway for HTTP dispatch.
func NewHandlers(host *Host, network spv.Network) *Handlers {
	return &Handlers{host: host, network: network}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", uuid.NewString())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.host.logger.Printf("error encoding response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch err {
	case bridgeerr.ErrNotOwner, bridgeerr.ErrNotFinanceAdmin, bridgeerr.ErrNotGateway:
		status = http.StatusForbidden
	case bridgeerr.ErrNoUtxo, bridgeerr.ErrNoMintKey, bridgeerr.ErrNoReleaseRequest:
		status = http.StatusNotFound
	}
	if _, ok := err.(*bridgeerr.SuspendedOp); ok {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

type requestMintAddressRequest struct {
	Sender  string `json:"sender"`
	Entropy string `json:"entropy"`
}

// HandleRequestMintAddress handles POST /gateway/request-mint-address.
func (h *Handlers) HandleRequestMintAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	var req requestMintAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	address, event, err := h.host.Gateway.RequestMintAddress([]byte(req.Sender), []byte(req.Entropy), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"address": address, "event": event})
}

type requestReleaseBtcRequest struct {
	Sender  string `json:"sender"`
	Amount  uint64 `json:"amount"`
	Entropy string `json:"entropy"`
}

// HandleRequestReleaseBtc handles POST /gateway/request-release-btc.
func (h *Handlers) HandleRequestReleaseBtc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	var req requestReleaseBtcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	event, err := h.host.Gateway.RequestReleaseBtc([]byte(req.Sender), req.Amount, []byte(req.Entropy), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"request_key": hex.EncodeToString(event.RequestKey[:]),
		"event":       event,
	})
}

type viewingKeyRequest struct {
	Sender  string `json:"sender"`
	Entropy string `json:"entropy"`
}

// HandleCreateViewingKey handles POST /gateway/create-viewing-key.
func (h *Handlers) HandleCreateViewingKey(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	var req viewingKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	key, err := h.host.Gateway.CreateViewingKey([]byte(req.Sender), req.Entropy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"viewing_key": key.String()})
}

// HandleHealth reports whether the SPV chain and light client have been
// bootstrapped yet, for a load balancer's readiness probe.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	tip, err := h.host.Chain.TipHeight()
	status := map[string]interface{}{"ok": true}
	if err != nil {
		status["ok"] = false
		status["chain_error"] = err.Error()
	} else {
		status["tip_height"] = strconv.FormatUint(uint64(tip), 10)
	}
	h.writeJSON(w, http.StatusOK, status)
}

func decodeAddress(s string, network spv.Network) (btcutil.Address, error) {
	return btcutil.DecodeAddress(s, network.Params())
}

type releaseBtcByOwnerRequest struct {
	Sender           string `json:"sender"`
	TxValue          uint64 `json:"tx_value"`
	MaxInputLength   uint64 `json:"max_input_length"`
	RecipientAddress string `json:"recipient_address"`
	FeePerVB         uint64 `json:"fee_per_vb"`
}

// HandleReleaseBtcByOwner handles POST /gateway/release-btc-by-owner.
func (h *Handlers) HandleReleaseBtcByOwner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	var req releaseBtcByOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	recipient, err := decodeAddress(req.RecipientAddress, h.network)
	if err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	tx, err := h.host.Gateway.ReleaseBtcByOwner(
		[]byte(req.Sender), req.TxValue, req.MaxInputLength, recipient, req.FeePerVB,
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var buf []byte
	if buf, err = serializeTx(tx); err != nil {
		h.writeError(w, bridgeerr.ErrSerialization)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"raw_tx": hex.EncodeToString(buf)})
}
