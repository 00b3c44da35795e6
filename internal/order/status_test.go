package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []Status{
	StatusPendingPayment,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

func TestCanTransition_Table(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPendingPayment: {StatusConfirmed, StatusCancelled},
		StatusConfirmed:      {StatusPreparing, StatusCancelled},
		StatusPreparing:      {StatusReady},
		StatusReady:          {StatusCompleted},
		StatusCompleted:      {},
		StatusCancelled:      {},
	}

	// Closure: every (from, to) pair is decided by the table, nothing else.
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPendingPayment.IsTerminal())
	assert.False(t, StatusReady.IsTerminal())
}

func TestStatusValid(t *testing.T) {
	for _, st := range allStatuses {
		assert.True(t, st.Valid(), st)
	}
	assert.False(t, Status("shipped").Valid())
	assert.False(t, Status("").Valid())
}
