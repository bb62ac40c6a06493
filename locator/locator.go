// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package locator derives pool addresses from their identity. The same pure
// derivation is used to find the pool to call and to authenticate callbacks
// from pools.
package locator

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/slots/route"
)

// DefaultCacheSize is the number of derived addresses kept in memory
const DefaultCacheSize = 1024

var (
	ErrUnknownFamily   = errors.New("unknown pool family")
	ErrIdenticalTokens = errors.New("identical tokens")
)

// Deployment is the factory and init code hash of one pool family
type Deployment struct {
	Factory      common.Address `json:"factory" toml:"factory"`
	InitCodeHash common.Hash    `json:"initCodeHash" toml:"init_code_hash"`
}

type cacheKey struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
	family route.Family
}

// Locator maps pool identities to addresses
type Locator struct {
	deployments map[route.Family]Deployment
	cache       *lru.Cache[cacheKey, common.Address]
}

// New creates a locator for the given family deployments
func New(deployments map[route.Family]Deployment, cacheSize int) (*Locator, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, common.Address](cacheSize)
	if err != nil {
		return nil, err
	}
	deps := make(map[route.Family]Deployment, len(deployments))
	for family, d := range deployments {
		if !family.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownFamily, family)
		}
		deps[family] = d
	}
	return &Locator{deployments: deps, cache: cache}, nil
}

// Deployment returns the deployment of a family
func (l *Locator) Deployment(family route.Family) (Deployment, bool) {
	d, ok := l.deployments[family]
	return d, ok
}

// Locate returns the address of the pool trading tokenA and tokenB at fee in
// the given family. Token order does not matter.
func (l *Locator) Locate(tokenA, tokenB common.Address, fee uint32, family route.Family) (common.Address, error) {
	d, ok := l.deployments[family]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrUnknownFamily, family)
	}
	token0, token1, err := SortTokens(tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	if family == route.FamilyAlgebra {
		fee = 0
	}

	key := cacheKey{token0: token0, token1: token1, fee: fee, family: family}
	if addr, ok := l.cache.Get(key); ok {
		return addr, nil
	}
	addr := Create2Address(d.Factory, Salt(token0, token1, fee, family), d.InitCodeHash)
	l.cache.Add(key, addr)
	return addr, nil
}

// LocatePool is Locate over a decoded route leg
func (l *Locator) LocatePool(p route.Pool) (common.Address, error) {
	return l.Locate(p.TokenIn, p.TokenOut, p.Fee, p.Family)
}

// SortTokens orders a pair by numeric value
func SortTokens(tokenA, tokenB common.Address) (common.Address, common.Address, error) {
	switch bytes.Compare(tokenA.Bytes(), tokenB.Bytes()) {
	case -1:
		return tokenA, tokenB, nil
	case 1:
		return tokenB, tokenA, nil
	default:
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %s", ErrIdenticalTokens, tokenA.Hex())
	}
}

// Salt builds the CREATE2 salt of a pool. Uniswap pools hash
// abi.encode(token0, token1, fee); Algebra pools hash abi.encode(token0, token1).
// Tokens must already be sorted.
func Salt(token0, token1 common.Address, fee uint32, family route.Family) common.Hash {
	if family == route.FamilyAlgebra {
		return common.BytesToHash(crypto.Keccak256(
			common.LeftPadBytes(token0.Bytes(), 32),
			common.LeftPadBytes(token1.Bytes(), 32),
		))
	}
	return common.BytesToHash(crypto.Keccak256(
		common.LeftPadBytes(token0.Bytes(), 32),
		common.LeftPadBytes(token1.Bytes(), 32),
		common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32),
	))
}

// Create2Address computes keccak256(0xff ++ deployer ++ salt ++ codeHash)[12:]
func Create2Address(deployer common.Address, salt, codeHash common.Hash) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte{0xff}, deployer.Bytes(), salt.Bytes(), codeHash.Bytes())[12:])
}
