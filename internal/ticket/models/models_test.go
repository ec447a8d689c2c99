package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusNew, StatusInProgress, true},
		{StatusNew, StatusClosed, true},
		{StatusNew, StatusResolved, false},
		{StatusInProgress, StatusResolved, true},
		{StatusInProgress, StatusClosed, true},
		{StatusInProgress, StatusNew, false},
		{StatusResolved, StatusClosed, true},
		{StatusResolved, StatusInProgress, true},
		{StatusClosed, StatusInProgress, false},
		{StatusClosed, StatusNew, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusNew.Valid())
	assert.True(t, StatusClosed.Valid())
	assert.False(t, Status("reopened").Valid())
}

func TestPriorityValid(t *testing.T) {
	assert.True(t, PriorityCritical.Valid())
	assert.False(t, Priority("urgent").Valid())
}
