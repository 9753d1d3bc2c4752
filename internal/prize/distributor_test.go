package prize

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateDistribution tests the distribution truth table
func TestValidateDistribution(t *testing.T) {
	tests := []struct {
		name        string
		percentages []uint64
		want        bool
	}{
		{"valid three tiers", []uint64{60, 30, 10}, true},
		{"valid single tier", []uint64{100}, true},
		{"valid even split", []uint64{50, 50}, true},
		{"sum below 100", []uint64{60, 30, 5}, false},
		{"sum above 100", []uint64{60, 30, 20}, false},
		{"zero entry", []uint64{60, 0, 40}, false},
		{"empty", []uint64{}, false},
		{"nil", nil, false},
		{"single tier above 100", []uint64{150}, false},
		{"uint64 sum wraps to 100", []uint64{^uint64(0), 101}, false},
		{"uint64 sum wraps to 100 reversed", []uint64{101, ^uint64(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateDistribution(tt.percentages))
		})
	}
}

// TestCalculatePrizes tests per-tier amounts in the pool's smallest unit
func TestCalculatePrizes(t *testing.T) {
	// 100 USDC at 6 decimals, 70/30 split
	pool := big.NewInt(100_000_000)
	amounts, err := CalculatePrizes(pool, []uint64{70, 30})
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	assert.Equal(t, big.NewInt(70_000_000), amounts[0])
	assert.Equal(t, big.NewInt(30_000_000), amounts[1])

	// 30 USDC, 60/30/10 split
	amounts, err = CalculatePrizes(big.NewInt(30_000_000), []uint64{60, 30, 10})
	require.NoError(t, err)
	require.Len(t, amounts, 3)
	assert.Equal(t, big.NewInt(18_000_000), amounts[0])
	assert.Equal(t, big.NewInt(9_000_000), amounts[1])
	assert.Equal(t, big.NewInt(3_000_000), amounts[2])
}

// TestCalculatePrizes_FloorNeverOverAllocates tests the conservation property
func TestCalculatePrizes_FloorNeverOverAllocates(t *testing.T) {
	pools := []*big.Int{
		big.NewInt(1),
		big.NewInt(7),
		big.NewInt(99),
		big.NewInt(30_000_000),
		new(big.Int).SetUint64(1<<63 + 12345),
	}
	distributions := [][]uint64{
		{100},
		{60, 30, 10},
		{33, 33, 34},
		{1, 1, 1, 97},
	}

	for _, pool := range pools {
		for _, dist := range distributions {
			amounts, err := CalculatePrizes(pool, dist)
			require.NoError(t, err)

			total := new(big.Int)
			for _, a := range amounts {
				total.Add(total, a)
			}
			assert.LessOrEqual(t, total.Cmp(pool), 0,
				"allocated %s exceeds pool %s for dist %v", total, pool, dist)
		}
	}
}

// TestCalculatePrizes_InvalidInputs tests the named rejection paths
func TestCalculatePrizes_InvalidInputs(t *testing.T) {
	_, err := CalculatePrizes(big.NewInt(0), []uint64{100})
	assert.ErrorIs(t, err, ErrInvalidPool)

	_, err = CalculatePrizes(nil, []uint64{100})
	assert.ErrorIs(t, err, ErrInvalidPool)

	_, err = CalculatePrizes(big.NewInt(-5), []uint64{100})
	assert.ErrorIs(t, err, ErrInvalidPool)

	_, err = CalculatePrizes(big.NewInt(1000), nil)
	assert.ErrorIs(t, err, ErrInvalidDistribution)
}

// TestCalculatePrizes_ExceedsPool tests the defensive invariant check
func TestCalculatePrizes_ExceedsPool(t *testing.T) {
	// Malformed distribution summing to 150 - only reachable when the
	// caller skipped ValidateDistribution
	_, err := CalculatePrizes(big.NewInt(1000), []uint64{100, 50})
	assert.ErrorIs(t, err, ErrDistributionExceedsPool)
}

// TestEffectiveWinnerCount tests tier/participant truncation
func TestEffectiveWinnerCount(t *testing.T) {
	assert.Equal(t, 3, EffectiveWinnerCount(3, 10))
	assert.Equal(t, 2, EffectiveWinnerCount(3, 2))
	assert.Equal(t, 0, EffectiveWinnerCount(3, 0))
	assert.Equal(t, 3, EffectiveWinnerCount(3, 3))
}
