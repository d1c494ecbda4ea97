package deriver

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

const (
	testPublicKey = "0x" +
		"1f2e3d4c5b6a79881726354493827160594837261029384756102938475610aa" +
		"bb0192837465564738291019283746556473829101928374655647382910bbcc"
	otherPublicKey = "0x" +
		"aa11bb22cc33dd44ee55ff66071829304a5b6c7d8e9f00112233445566778899" +
		"99887766554433221100f0e9d8c7b6a5940302912837465564738291aabbccdd"
	testCredentialID = "credential-abc-123"
)

func TestDeriveV2Deterministic(t *testing.T) {
	first, err := DeriveV2(testPublicKey, testCredentialID, big.NewInt(0))
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}
	second, err := DeriveV2(testPublicKey, testCredentialID, big.NewInt(0))
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}

	if first != second {
		t.Errorf("same inputs derived %s and %s, want identical", first.Hex(), second.Hex())
	}
	if first == (common.Address{}) {
		t.Error("derived address must not be zero")
	}
}

func TestDeriveV2InputSensitivity(t *testing.T) {
	base, err := DeriveV2(testPublicKey, testCredentialID, big.NewInt(0))
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}

	tests := []struct {
		name         string
		publicKey    string
		credentialID string
		index        *big.Int
	}{
		{name: "different key", publicKey: otherPublicKey, credentialID: testCredentialID, index: big.NewInt(0)},
		{name: "different credential", publicKey: testPublicKey, credentialID: "credential-other", index: big.NewInt(0)},
		{name: "different index", publicKey: testPublicKey, credentialID: testCredentialID, index: big.NewInt(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveV2(tt.publicKey, tt.credentialID, tt.index)
			if err != nil {
				t.Fatalf("DeriveV2() error = %v", err)
			}
			if got == base {
				t.Errorf("changed input derived the same address %s", got.Hex())
			}
		})
	}
}

func TestDeriveV2NilIndexDefaultsToZero(t *testing.T) {
	explicit, err := DeriveV2(testPublicKey, testCredentialID, big.NewInt(0))
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}
	implicit, err := DeriveV2(testPublicKey, testCredentialID, nil)
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}
	if explicit != implicit {
		t.Errorf("nil index derived %s, explicit zero derived %s", implicit.Hex(), explicit.Hex())
	}
}

func TestDeriveV3Deterministic(t *testing.T) {
	first, err := DeriveV3(testPublicKey)
	if err != nil {
		t.Fatalf("DeriveV3() error = %v", err)
	}
	second, err := DeriveV3(testPublicKey)
	if err != nil {
		t.Fatalf("DeriveV3() error = %v", err)
	}
	if first != second {
		t.Errorf("same key derived %s and %s, want identical", first.Hex(), second.Hex())
	}

	other, err := DeriveV3(otherPublicKey)
	if err != nil {
		t.Fatalf("DeriveV3() error = %v", err)
	}
	if other == first {
		t.Error("different keys must derive different addresses")
	}
}

func TestV2AndV3Disjoint(t *testing.T) {
	v2, err := DeriveV2(testPublicKey, testCredentialID, big.NewInt(0))
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}
	v3, err := DeriveV3(testPublicKey)
	if err != nil {
		t.Fatalf("DeriveV3() error = %v", err)
	}
	if v2 == v3 {
		t.Errorf("v2 and v3 derived the same address %s", v2.Hex())
	}
}

func TestDeriveAliasesV2(t *testing.T) {
	alias, err := Derive(testPublicKey, testCredentialID)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	v2, err := DeriveV2(testPublicKey, testCredentialID, nil)
	if err != nil {
		t.Fatalf("DeriveV2() error = %v", err)
	}
	if alias != v2 {
		t.Errorf("Derive() = %s, DeriveV2() = %s, want identical", alias.Hex(), v2.Hex())
	}
}

func TestInvalidPublicKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "missing prefix", key: strings.Repeat("ab", 64)},
		{name: "too short", key: "0x" + strings.Repeat("ab", 63)},
		{name: "too long", key: "0x" + strings.Repeat("ab", 65)},
		{name: "not hex", key: "0x" + strings.Repeat("zz", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DeriveV2(tt.key, testCredentialID, nil); err == nil {
				t.Error("DeriveV2() expected error")
			}
			if _, err := DeriveV3(tt.key); err == nil {
				t.Error("DeriveV3() expected error")
			}
		})
	}
}

func TestAuthenticatorIDHash(t *testing.T) {
	first := AuthenticatorIDHash(testCredentialID)
	second := AuthenticatorIDHash(testCredentialID)
	if first != second {
		t.Errorf("same credentialId hashed to %s and %s", first.Hex(), second.Hex())
	}

	other := AuthenticatorIDHash("credential-other")
	if other == first {
		t.Error("different credentialIds must hash differently")
	}
	if first == (common.Hash{}) {
		t.Error("hash must not be zero")
	}
}

func TestValidateWebAuthnKey(t *testing.T) {
	valid := new(big.Int).SetInt64(12345)

	tests := []struct {
		name string
		x    *big.Int
		y    *big.Int
		want bool
	}{
		{name: "valid", x: valid, y: valid, want: true},
		{name: "nil x", x: nil, y: valid, want: false},
		{name: "nil y", x: valid, y: nil, want: false},
		{name: "zero x", x: big.NewInt(0), y: valid, want: false},
		{name: "zero y", x: valid, y: big.NewInt(0), want: false},
		{name: "x at field prime", x: p256FieldPrime, y: valid, want: false},
		{name: "y above field prime", x: valid, y: new(big.Int).Add(p256FieldPrime, big.NewInt(1)), want: false},
		{
			name: "max valid coordinate",
			x:    new(big.Int).Sub(p256FieldPrime, big.NewInt(1)),
			y:    valid,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateWebAuthnKey(tt.x, tt.y); got != tt.want {
				t.Errorf("ValidateWebAuthnKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
