// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auth implements detached owner authorizations for vault
// operations: an owner signs a typed, vault-scoped message off-line and any
// relayer can submit it. Messages are hashed EIP-712 style and signatures
// are recovered with secp256k1.
package auth

import (
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

const (
	// SignatureLength is r || s || v
	SignatureLength = 65

	recoveryIDOffset = 27
)

var (
	ErrExpiredSignature = errors.New("expired signature")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidNonce     = errors.New("invalid authorization nonce")
)

var (
	domainTypeHash = common.BytesToHash(crypto.Keccak256(
		[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
	))
	authorizationTypeHash = common.BytesToHash(crypto.Keccak256(
		[]byte("Authorization(address owner,address vault,string action,bytes32 params,uint256 nonce,uint256 deadline)"),
	))
)

// Authorization lets a relayer act on a vault for its owner. Params is the
// hash of the call arguments, so a relayer cannot change them.
type Authorization struct {
	Owner    common.Address
	Vault    common.Address
	Action   string
	Params   common.Hash
	Nonce    uint64
	Deadline uint64

	Signature []byte
}

// Verifier checks that signature over the typed message was produced by
// expectedSigner
type Verifier interface {
	Verify(signature []byte, domainSeparator, structHash common.Hash, expectedSigner common.Address) bool
}

// DomainSeparator hashes the signing domain of a contract
func DomainSeparator(name, version string, chainID uint64, contract common.Address) common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		domainTypeHash.Bytes(),
		crypto.Keccak256([]byte(name)),
		crypto.Keccak256([]byte(version)),
		word(chainID),
		common.LeftPadBytes(contract.Bytes(), 32),
	))
}

// StructHash hashes the signed fields of a
func (a Authorization) StructHash() common.Hash {
	return common.BytesToHash(crypto.Keccak256(
		authorizationTypeHash.Bytes(),
		common.LeftPadBytes(a.Owner.Bytes(), 32),
		common.LeftPadBytes(a.Vault.Bytes(), 32),
		crypto.Keccak256([]byte(a.Action)),
		a.Params.Bytes(),
		word(a.Nonce),
		word(a.Deadline),
	))
}

// Digest returns the hash that is actually signed
func Digest(domainSeparator, structHash common.Hash) []byte {
	return crypto.Keccak256([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes())
}

// Sign fills a.Signature using key
func Sign(a *Authorization, domainSeparator common.Hash, key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(Digest(domainSeparator, a.StructHash()), key)
	if err != nil {
		return fmt.Errorf("sign authorization: %w", err)
	}
	a.Signature = sig
	return nil
}

// AddressOf derives the account address of a public key
func AddressOf(pub *ecdsa.PublicKey) common.Address {
	return common.Address(crypto.PubkeyToAddress(*pub))
}

// Params hashes the arguments of an authorized call. Each argument is one
// field, so adjacent variable-length fields cannot be shifted into each other.
func Params(fields ...[]byte) common.Hash {
	words := make([][]byte, len(fields))
	for i, f := range fields {
		words[i] = crypto.Keccak256(f)
	}
	return common.BytesToHash(crypto.Keccak256(words...))
}

// Check validates a for vault, action, the hash of the actual call
// arguments and the expected nonce at ledger time now. The signer must be
// owner.
func Check(
	v Verifier,
	domainSeparator common.Hash,
	a *Authorization,
	owner common.Address,
	vault common.Address,
	action string,
	params common.Hash,
	nonce uint64,
	now uint64,
) error {
	if a == nil {
		return ErrInvalidSignature
	}
	if now > a.Deadline {
		return fmt.Errorf("%w: deadline %d, now %d", ErrExpiredSignature, a.Deadline, now)
	}
	if a.Owner != owner || a.Vault != vault || a.Action != action {
		return fmt.Errorf("%w: authorization does not cover %s on %s", ErrInvalidSignature, action, vault.Hex())
	}
	if a.Params != params {
		return fmt.Errorf("%w: authorization signed for other %s arguments", ErrInvalidSignature, action)
	}
	if a.Nonce != nonce {
		return fmt.Errorf("%w: want %d, got %d", ErrInvalidNonce, nonce, a.Nonce)
	}
	if !v.Verify(a.Signature, domainSeparator, a.StructHash(), owner) {
		return ErrInvalidSignature
	}
	return nil
}

// ECDSAVerifier recovers the signer of a secp256k1 signature
type ECDSAVerifier struct{}

var _ Verifier = ECDSAVerifier{}

func (ECDSAVerifier) Verify(signature []byte, domainSeparator, structHash common.Hash, expectedSigner common.Address) bool {
	if len(signature) != SignatureLength || expectedSigner == (common.Address{}) {
		return false
	}
	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= recoveryIDOffset {
		sig[64] -= recoveryIDOffset
	}
	if sig[64] > 1 {
		return false
	}
	pub, err := crypto.SigToPub(Digest(domainSeparator, structHash), sig)
	if err != nil {
		return false
	}
	return AddressOf(pub) == expectedSigner
}

func word(v uint64) []byte {
	out := make([]byte, 32)
	binary.BigEndian.PutUint64(out[24:], v)
	return out
}
