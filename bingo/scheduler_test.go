package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawSchedulerGenerations(t *testing.T) {
	s := newDrawScheduler(time.Hour, func(uint64) {})
	assert.False(t, s.disarm())

	require.True(t, s.arm())
	assert.False(t, s.arm())
	assert.True(t, s.armed())
	first := s.gen
	assert.True(t, s.due(first))

	require.True(t, s.disarm())
	assert.False(t, s.due(first))
	assert.False(t, s.armed())

	require.True(t, s.arm())
	assert.False(t, s.due(first))
	assert.True(t, s.due(s.gen))
	s.disarm()
}

func TestDrawSchedulerDisabled(t *testing.T) {
	s := newDrawScheduler(0, func(uint64) { t.Fatal("fired while disabled") })
	assert.False(t, s.arm())
	assert.False(t, s.armed())
}

func TestDrawSchedulerFires(t *testing.T) {
	fired := make(chan uint64, 4)
	s := newDrawScheduler(time.Millisecond, func(gen uint64) { fired <- gen })
	require.True(t, s.arm())
	defer s.disarm()

	select {
	case gen := <-fired:
		assert.True(t, s.due(gen))
		s.next()
	case <-time.After(eventTimeout):
		t.Fatal("scheduler never fired")
	}
	select {
	case gen := <-fired:
		assert.True(t, s.due(gen))
	case <-time.After(eventTimeout):
		t.Fatal("scheduler did not fire after next")
	}
}
