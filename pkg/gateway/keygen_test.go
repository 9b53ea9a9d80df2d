package gateway

import (
	"math/big"
	"testing"

	"github.com/shinobi-protocol/secret-btc-sub000/pkg/prng"
)

func TestIsValidScalar(t *testing.T) {
	order := big.NewInt(100)
	cases := []struct {
		name string
		v    *big.Int
		want bool
	}{
		{"zero", big.NewInt(0), false},
		{"one", big.NewInt(1), true},
		{"just below order", big.NewInt(99), true},
		{"equal to order", big.NewInt(100), false},
		{"above order", big.NewInt(101), false},
	}
	for _, c := range cases {
		if got := isValidScalar(c.v.Bytes(), order); got != c.want {
			t.Errorf("%s: isValidScalar = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRandomPrivateKey_DeterministicForSameSeed(t *testing.T) {
	var seed prng.Seed
	seed[0] = 7
	k1 := randomPrivateKey(prng.NewRng(seed))
	k2 := randomPrivateKey(prng.NewRng(seed))
	if string(k1.Serialize()) != string(k2.Serialize()) {
		t.Fatalf("expected identical keys for identical seeds")
	}
}

func TestRandomPrivateKey_DiffersAcrossSeeds(t *testing.T) {
	var seedA, seedB prng.Seed
	seedB[0] = 1
	k1 := randomPrivateKey(prng.NewRng(seedA))
	k2 := randomPrivateKey(prng.NewRng(seedB))
	if string(k1.Serialize()) == string(k2.Serialize()) {
		t.Fatalf("expected different keys for different seeds")
	}
}
