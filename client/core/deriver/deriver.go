// Package deriver computes deterministic smart-wallet addresses from WebAuthn keys.
package deriver

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// 公钥格式:未压缩P-256坐标对,0x + 128个十六进制字符
const (
	publicKeyHexLen = 128
	errInvalidKey   = "invalid public key: must be 64-byte hex string (0x + 128 chars)"
)

// ===== 派生方案常量(链上工厂合约固定参数) =====

var (
	// V2方案:带credentialId的CREATE2派生
	v2Factory           = common.HexToAddress("0x3c7f41E6C8A0cE5F8E9B4D27a1F0642D5a3b9E11")
	v2ProxyInitCodeHash = hexutil.MustDecode("0x21c2f03e9df105f2ac25efa1b2b1f67eaa386a5eb0df99a297a88a3b0fa9d345")

	// V3方案:仅公钥派生,salt域与V2严格隔离
	v3Factory             = common.HexToAddress("0x9aD04F60f4B68fC8C9d0B1a3E57c21e4D8b2A770")
	v3AccountInitCodeHash = hexutil.MustDecode("0x7f5c3a9be41d80462f06e9f1dc08cd8f52d8e6a0b7c914ffb2da60e3c115a2d8")

	// v3SaltDomain V3 salt域分隔符(与V2的salt输入结构不同源)
	v3SaltDomain = crypto.Keccak256([]byte("lumina.smart-account.v3"))

	// p256FieldPrime P-256素域模数,WebAuthn坐标上界
	p256FieldPrime, _ = new(big.Int).SetString(
		"ffffffff00000001000000000000000000000000ffffffffffffffffffffffff", 16)
)

// parsePublicKey 校验并拆分公钥为X/Y坐标(各32字节)
//
// 任何格式问题都在哈希计算前报错。
func parsePublicKey(publicKey string) (x []byte, y []byte, err error) {
	if !strings.HasPrefix(publicKey, "0x") || len(publicKey) != 2+publicKeyHexLen {
		return nil, nil, fmt.Errorf("%s", errInvalidKey)
	}
	raw, err := hex.DecodeString(publicKey[2:])
	if err != nil {
		return nil, nil, fmt.Errorf("%s", errInvalidKey)
	}
	return raw[:32], raw[32:], nil
}

// AuthenticatorIDHash 计算credentialId的固定长度标识哈希
//
// 作为链上查找键使用;同一输入恒得同一哈希。
func AuthenticatorIDHash(credentialID string) common.Hash {
	return crypto.Keccak256Hash([]byte(credentialID))
}

// abiWord 左填充为32字节ABI字
func abiWord(value *big.Int) []byte {
	word := make([]byte, 32)
	return value.FillBytes(word)
}

// DeriveV2 V2方案地址派生
//
// salt = keccak256(x ‖ y ‖ authenticatorIdHash(credentialId) ‖ index字),
// 地址 = CREATE2(v2工厂, salt, v2代理initCode哈希)。
// index 为 nil 时默认0。
func DeriveV2(publicKey string, credentialID string, index *big.Int) (common.Address, error) {
	x, y, err := parsePublicKey(publicKey)
	if err != nil {
		return common.Address{}, err
	}
	if index == nil {
		index = big.NewInt(0)
	}

	idHash := AuthenticatorIDHash(credentialID)
	salt := crypto.Keccak256Hash(x, y, idHash.Bytes(), abiWord(index))

	return crypto.CreateAddress2(v2Factory, salt, v2ProxyInitCodeHash), nil
}

// DeriveV3 V3方案地址派生(仅公钥)
//
// salt = keccak256(x ‖ y ‖ v3域分隔符)。工厂与initCode均与V2不同,
// 同一公钥的V3地址必然不同于任何V2地址。
func DeriveV3(publicKey string) (common.Address, error) {
	x, y, err := parsePublicKey(publicKey)
	if err != nil {
		return common.Address{}, err
	}

	salt := crypto.Keccak256Hash(x, y, v3SaltDomain)

	return crypto.CreateAddress2(v3Factory, salt, v3AccountInitCodeHash), nil
}

// Derive 当前默认派生方案(向后兼容,等价于V2)
func Derive(publicKey string, credentialID string) (common.Address, error) {
	return DeriveV2(publicKey, credentialID, nil)
}

// ValidateWebAuthnKey 校验WebAuthn公钥坐标形态
//
// 两个坐标都必须非零且小于P-256素域模数。
func ValidateWebAuthnKey(pubKeyX *big.Int, pubKeyY *big.Int) bool {
	if pubKeyX == nil || pubKeyY == nil {
		return false
	}
	if pubKeyX.Sign() == 0 || pubKeyY.Sign() == 0 {
		return false
	}
	return pubKeyX.Cmp(p256FieldPrime) < 0 && pubKeyY.Cmp(p256FieldPrime) < 0
}
