// Package token classifies 256-bit hypercert token ids. The high 128 bits
// hold the claim id; a non-zero low half marks a fraction of that claim.
package token

import "math/big"

var (
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	lowMask    = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

	// TypeMask clears the low 128 bits of a 256-bit id.
	TypeMask = new(big.Int).Xor(maxUint256, lowMask)
)

// ClaimIDOf returns id & TypeMask. Nil is treated as zero.
func ClaimIDOf(id *big.Int) *big.Int {
	if id == nil {
		return new(big.Int)
	}
	return new(big.Int).And(id, TypeMask)
}

// IsClaim reports whether id has no fraction index.
func IsClaim(id *big.Int) bool {
	if id == nil {
		return true
	}
	return ClaimIDOf(id).Cmp(new(big.Int).And(id, maxUint256)) == 0
}

// IsFraction reports whether id carries a non-zero fraction index.
func IsFraction(id *big.Int) bool {
	return !IsClaim(id)
}

// FractionIndex returns the low 128 bits of id.
func FractionIndex(id *big.Int) *big.Int {
	if id == nil {
		return new(big.Int)
	}
	return new(big.Int).And(id, lowMask)
}

// InRange reports whether id is a valid uint256.
func InRange(id *big.Int) bool {
	return id != nil && id.Sign() >= 0 && id.Cmp(maxUint256) <= 0
}
