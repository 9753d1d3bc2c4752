// Package prize implements the pool allocation math used at league finalization.
package prize

import (
	"errors"
	"math/big"

	"league-backend/internal/utils"
)

var (
	ErrInvalidPool             = errors.New("invalid pool: pool must be greater than zero")
	ErrInvalidDistribution     = errors.New("invalid distribution: percentages must not be empty")
	ErrDistributionExceedsPool = errors.New("distribution exceeds pool")
)

var oneHundred = big.NewInt(100)

// ValidateDistribution reports whether a prize distribution is well-formed:
// non-empty, no zero tiers, and an exact sum of 100.
func ValidateDistribution(percentages []uint64) bool {
	if len(percentages) == 0 {
		return false
	}

	var sum uint64
	for _, pct := range percentages {
		if pct == 0 || pct > 100 {
			return false
		}
		sum += pct
		// no single tier exceeds 100, so the running sum cannot wrap
		if sum > 100 {
			return false
		}
	}

	return sum == 100
}

// CalculatePrizes computes the per-tier prize amounts from a pool.
// Each amount is floor(pool * percentage / 100) in the pool's smallest unit.
// Percentages summing over 100 fail with ErrDistributionExceedsPool; floor
// division never over-allocates on a valid distribution.
func CalculatePrizes(pool *big.Int, percentages []uint64) ([]*big.Int, error) {
	if pool == nil || pool.Sign() <= 0 {
		return nil, ErrInvalidPool
	}
	if len(percentages) == 0 {
		return nil, ErrInvalidDistribution
	}

	amounts := make([]*big.Int, len(percentages))
	total := new(big.Int)

	for i, pct := range percentages {
		amount := new(big.Int).Mul(pool, new(big.Int).SetUint64(pct))
		amount.Div(amount, oneHundred)
		amounts[i] = amount
		total.Add(total, amount)
	}

	if total.Cmp(pool) > 0 {
		return nil, ErrDistributionExceedsPool
	}

	return amounts, nil
}

// EffectiveWinnerCount returns how many prize tiers are actually paid out.
// With fewer participants than tiers, only the top N participants win and
// the unused tiers are simply not allocated.
func EffectiveWinnerCount(tierCount, participantCount int) int {
	return utils.Min(tierCount, participantCount)
}
