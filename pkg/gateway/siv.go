package gateway

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/bridgeerr"
)

// AES-128-SIV (RFC 5297) over a 32-byte key and empty associated data,
// decrypting the deterministic claim payload a ClaimReleasedBtc caller
// presents (spec §4.6, §9 "Wire formats"). No SIV-mode library appears
// anywhere in the retrieval pack, so this implements the construction
// directly from the RFC on top of crypto/aes + crypto/cipher, which is the
// standard-library justification recorded in DESIGN.md for this file.

const sivBlockSize = aes.BlockSize // 16

// s2v computes RFC 5297's S2V over a single associated-data string (here
// always empty, per spec) and the plaintext, using CMAC-AES128 keyed by
// the leftmost half of a SIV key.
func s2v(k1 []byte, associatedData, plaintext []byte) ([]byte, error) {
	d, err := cmac(k1, make([]byte, sivBlockSize))
	if err != nil {
		return nil, err
	}

	ad, err := cmac(k1, associatedData)
	if err != nil {
		return nil, err
	}
	d = xorBytes(dbl(d), ad)

	var t []byte
	if len(plaintext) >= sivBlockSize {
		t = xorEnd(plaintext, d)
	} else {
		t = xorBytes(dbl(d), pad(plaintext))
	}
	return cmac(k1, t)
}

// cmac is AES-CMAC (RFC 4493, NIST SP 800-38B) over key (16 bytes) and msg
// of any length.
func cmac(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	zero := make([]byte, sivBlockSize)
	l := make([]byte, sivBlockSize)
	block.Encrypt(l, zero)
	k1 := dbl(l)
	k2 := dbl(k1)

	var padded bool
	n := (len(msg) + sivBlockSize - 1) / sivBlockSize
	if n == 0 {
		n = 1
		padded = true
	} else if len(msg)%sivBlockSize != 0 {
		padded = true
	}

	lastBlockStart := (n - 1) * sivBlockSize
	var lastBlock []byte
	if padded {
		tail := msg[lastBlockStart:]
		lastBlock = xorBytes(pad(tail), k2)
	} else {
		lastBlock = xorBytes(msg[lastBlockStart:lastBlockStart+sivBlockSize], k1)
	}

	mac := make([]byte, sivBlockSize)
	for i := 0; i < n-1; i++ {
		block := msg[i*sivBlockSize : (i+1)*sivBlockSize]
		mac = xorBytes(mac, block)
		out := make([]byte, sivBlockSize)
		blockCipher(key, mac, out)
		mac = out
	}
	mac = xorBytes(mac, lastBlock)
	out := make([]byte, sivBlockSize)
	blockCipher(key, mac, out)
	return out, nil
}

func blockCipher(key, src, dst []byte) {
	block, _ := aes.NewCipher(key)
	block.Encrypt(dst, src)
}

// dbl is multiplication-by-x in GF(2^128) with the AES-CMAC reduction
// polynomial, per RFC 4493 section 2.3.
func dbl(in []byte) []byte {
	out := make([]byte, len(in))
	var carry byte
	for i := len(in) - 1; i >= 0; i-- {
		v := in[i]
		out[i] = (v << 1) | carry
		carry = v >> 7
	}
	if in[0]&0x80 != 0 {
		out[len(out)-1] ^= 0x87
	}
	return out
}

func pad(in []byte) []byte {
	out := make([]byte, sivBlockSize)
	copy(out, in)
	out[len(in)] = 0x80
	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// xorEnd xors d into the rightmost len(d) bytes of s, leaving the prefix
// untouched (RFC 5297's xorend).
func xorEnd(s, d []byte) []byte {
	out := make([]byte, len(s))
	copy(out, s)
	offset := len(s) - len(d)
	for i := range d {
		out[offset+i] ^= d[i]
	}
	return out
}

// sivCounterBlock clears the top bit of the third and the final 32-bit
// words of v, per RFC 5297 section 2.6, yielding the initial CTR block.
func sivCounterBlock(v []byte) []byte {
	q := make([]byte, len(v))
	copy(q, v)
	q[8] &= 0x7f
	q[12] &= 0x7f
	return q
}

// DecryptAESSIV decrypts a claim payload produced with AES-128-SIV over a
// 32-byte key and empty associated data: ciphertext is SIV (16 bytes)
// followed by the CTR-encrypted plaintext. The recovered plaintext is
// rejected (bridgeerr.ErrDecryption) unless recomputing S2V over it
// reproduces the carried SIV, authenticating the payload.
func DecryptAESSIV(key [32]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < sivBlockSize {
		return nil, bridgeerr.ErrDecryption
	}
	k1 := key[:16]
	k2 := key[16:]

	v := ciphertext[:sivBlockSize]
	c := ciphertext[sivBlockSize:]

	block, err := aes.NewCipher(k2)
	if err != nil {
		return nil, bridgeerr.ErrDecryption
	}
	counter := sivCounterBlock(v)
	stream := cipher.NewCTR(block, counter)
	plaintext := make([]byte, len(c))
	stream.XORKeyStream(plaintext, c)

	recomputed, err := s2v(k1, nil, plaintext)
	if err != nil {
		return nil, bridgeerr.ErrDecryption
	}
	if subtle.ConstantTimeCompare(recomputed, v) != 1 {
		return nil, bridgeerr.ErrDecryption
	}
	return plaintext, nil
}

// EncryptAESSIV is the inverse of DecryptAESSIV, used by tests to produce
// well-formed payloads (the gateway itself only ever decrypts claims
// presented to it).
func EncryptAESSIV(key [32]byte, plaintext []byte) ([]byte, error) {
	k1 := key[:16]
	k2 := key[16:]

	v, err := s2v(k1, nil, plaintext)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(k2)
	if err != nil {
		return nil, err
	}
	counter := sivCounterBlock(v)
	stream := cipher.NewCTR(block, counter)
	ciphertext := make([]byte, len(plaintext))
	stream.XORKeyStream(ciphertext, plaintext)

	out := make([]byte, 0, len(v)+len(ciphertext))
	out = append(out, v...)
	out = append(out, ciphertext...)
	return out, nil
}
