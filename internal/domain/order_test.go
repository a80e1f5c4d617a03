package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Table(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
	}

	allowed := map[OrderStatus]map[OrderStatus]bool{
		OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true},
		OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true},
		OrderStatusShipped:    {OrderStatusDelivered: true, OrderStatusRefunded: true},
		OrderStatusDelivered:  {OrderStatusRefunded: true},
		OrderStatusCancelled:  {},
		OrderStatusRefunded:   {},
	}

	for _, from := range all {
		for _, to := range all {
			got := CanTransition(from, to)
			want := allowed[from][to]
			assert.Equal(t, want, got, "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransition_NeverReentersPending(t *testing.T) {
	for _, from := range []OrderStatus{
		OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusRefunded,
	} {
		assert.False(t, CanTransition(from, OrderStatusPending), "%s -> pending must be rejected", from)
	}
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(OrderStatusCancelled))
	assert.True(t, IsTerminalStatus(OrderStatusRefunded))
	assert.False(t, IsTerminalStatus(OrderStatusPending))
	// delivered still allows refund, so it is not terminal
	assert.False(t, IsTerminalStatus(OrderStatusDelivered))
}

func TestValidOrderStatus(t *testing.T) {
	assert.True(t, ValidOrderStatus(OrderStatusShipped))
	assert.False(t, ValidOrderStatus(OrderStatus("returned")))
}
