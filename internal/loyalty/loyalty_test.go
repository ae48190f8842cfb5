package loyalty

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointsEarnedFloors(t *testing.T) {
	assert.Equal(t, 23, PointsEarned(decimal.RequireFromString("23.40")))
	assert.Equal(t, 23, PointsEarned(decimal.RequireFromString("23.99")))
	assert.Equal(t, 0, PointsEarned(decimal.RequireFromString("0.99")))
	assert.Equal(t, 0, PointsEarned(decimal.RequireFromString("-4")))
}

func TestRedeemDebitsThreshold(t *testing.T) {
	p := Policy{Threshold: 80}

	debit, err := p.Redeem(100)
	require.NoError(t, err)
	assert.Equal(t, 80, debit)

	debit, err = p.Redeem(80)
	require.NoError(t, err)
	assert.Equal(t, 80, debit)

	assert.False(t, p.CanRedeem(79))
	_, err = p.Redeem(79)
	require.ErrorIs(t, err, ErrInsufficientPoints)
}

func TestZeroThresholdDisablesRedemption(t *testing.T) {
	p := Policy{Threshold: 0}
	assert.False(t, p.CanRedeem(1000))
	_, err := p.Redeem(1000)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
}
