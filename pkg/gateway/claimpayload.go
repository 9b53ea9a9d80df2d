package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// requestReleaseBtcAnswer mirrors the original RequestReleaseBtc response
// shape a claim payload must decode to (spec §9 "Wire formats"): a JSON
// object with a single base64-encoded 32-byte request_key field.
type requestReleaseBtcAnswer struct {
	RequestKey []byte `json:"request_key"`
}

// parseClaimPayload recovers the request_key carried by a decrypted claim
// payload: a base64-encoded JSON object, whitespace-padded to a fixed
// length so every claim payload is indistinguishable in size.
func parseClaimPayload(plaintext []byte) ([32]byte, error) {
	trimmed := bytes.TrimRight(plaintext, " \t\r\n\x00")

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(trimmed)))
	n, err := base64.StdEncoding.Decode(decoded, trimmed)
	if err != nil {
		return [32]byte{}, bridgeerr.ErrDecryption
	}

	var answer requestReleaseBtcAnswer
	if err := json.Unmarshal(decoded[:n], &answer); err != nil {
		return [32]byte{}, bridgeerr.ErrDecryption
	}
	if len(answer.RequestKey) != 32 {
		return [32]byte{}, bridgeerr.ErrDecryption
	}
	var key [32]byte
	copy(key[:], answer.RequestKey)
	return key, nil
}

// encodeClaimPayload is the test-side inverse of parseClaimPayload, used to
// build synthetic claim payloads for the release round-trip tests.
func encodeClaimPayload(requestKey [32]byte, padTo int) []byte {
	answer := requestReleaseBtcAnswer{RequestKey: requestKey[:]}
	raw, _ := json.Marshal(answer)
	encoded := base64.StdEncoding.EncodeToString(raw)
	out := []byte(encoded)
	for len(out) < padTo {
		out = append(out, ' ')
	}
	return out
}
