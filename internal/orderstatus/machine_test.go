package orderstatus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastore/m/domain"
)

func TestForwardOnly(t *testing.T) {
	statuses := []domain.OrderStatus{domain.StatusPending, domain.StatusInTransit, domain.StatusDelivered}
	for i, from := range statuses {
		for j, to := range statuses {
			err := Transition(from, to)
			assert.Equal(t, j == i+1, err == nil, "%s -> %s: %v", from, to, err)
		}
	}
}

func TestDeliveredIsTerminal(t *testing.T) {
	_, err := Next(domain.StatusDelivered)
	require.ErrorIs(t, err, ErrTerminal)
	require.ErrorIs(t, Transition(domain.StatusDelivered, domain.StatusPending), ErrTerminal)
	assert.True(t, IsTerminal(domain.StatusDelivered))
	assert.False(t, IsTerminal(domain.StatusInTransit))
}

func TestSkipRejected(t *testing.T) {
	err := Transition(domain.StatusPending, domain.StatusDelivered)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUnknownStatus(t *testing.T) {
	_, err := Next("CANCELLED")
	require.ErrorIs(t, err, ErrUnknownStatus)
}

func TestInitial(t *testing.T) {
	assert.Equal(t, domain.StatusPending, Initial(domain.SourceOnline))
	assert.Equal(t, domain.StatusDelivered, Initial(domain.SourcePOS))
}
