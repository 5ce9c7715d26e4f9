package idmask

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoofkit/idmask/refstr"
	"github.com/spoofkit/idmask/registry"
)

// stubOriginal stands in for the captured original and records how it was
// called.
type stubOriginal struct {
	calls  int
	entry  registry.Entry
	key    *refstr.Value
	alloc  *refstr.Allocator
	opts   registry.OptionBits
	result *refstr.Value
}

func (s *stubOriginal) copyProperty(entry registry.Entry, key *refstr.Value, alloc *refstr.Allocator, opts registry.OptionBits) *refstr.Value {
	s.calls++
	s.entry, s.key, s.alloc, s.opts = entry, key, alloc, opts
	return s.result
}

func (s *stubOriginal) install(symbol string, replacement registry.CopyPropertyFunc, original *registry.CopyPropertyFunc) error {
	*original = s.copyProperty
	return nil
}

func newTestHook(t *testing.T, stub *stubOriginal) *hookState {
	t.Helper()
	h := newHookState("test.symbol", TargetKey, SpoofedUUID)
	require.NoError(t, h.enable(stub.install, h.dispatch))
	return h
}

func TestDispatchExactMatch(t *testing.T) {
	assert := assert.New(t)

	stub := &stubOriginal{}
	h := newTestHook(t, stub)

	key := refstr.New(TargetKey)
	defer key.Release()

	v := h.dispatch(registry.NoEntry, key, nil, registry.NoOptions)
	if assert.NotNil(v) {
		text, ok := v.Text()
		assert.True(ok)
		assert.Equal(SpoofedUUID, text)
		v.Release()
	}

	// The original is never consulted on a match.
	assert.Equal(0, stub.calls)
}

func TestDispatchDelegates(t *testing.T) {
	real := refstr.New("real-value")
	defer real.Release()

	// Right text, but released: conversion fails, so it cannot match.
	deadKey := refstr.New(TargetKey)
	deadKey.Release()

	otherKey := refstr.New(registry.KeyPlatformSerial)
	defer otherKey.Release()

	cases := map[string]*refstr.Value{
		"non-matching key": otherKey,
		"nil key":          nil,
		"dead key":         deadKey,
	}

	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubOriginal{result: real}
			h := newTestHook(t, stub)

			v := h.dispatch(registry.Entry(7), key, nil, registry.NoOptions)
			assert.Same(t, real, v)
			assert.Equal(t, 1, stub.calls)
		})
	}
}

func TestDispatchDelegatesNilResult(t *testing.T) {
	stub := &stubOriginal{}
	h := newTestHook(t, stub)

	key := refstr.New("NothingHere")
	defer key.Release()

	assert.Nil(t, h.dispatch(registry.Entry(1), key, nil, registry.NoOptions))
	assert.Equal(t, 1, stub.calls)
}

func TestDispatchPassesArgumentsUnmodified(t *testing.T) {
	assert := assert.New(t)

	stub := &stubOriginal{}
	h := newTestHook(t, stub)

	key := refstr.New("SomeOtherKey")
	defer key.Release()
	alloc := refstr.NewAllocator("caller")

	h.dispatch(registry.Entry(42), key, alloc, registry.OptionBits(3))

	assert.Equal(registry.Entry(42), stub.entry)
	assert.Same(key, stub.key)
	assert.Same(alloc, stub.alloc)
	assert.Equal(registry.OptionBits(3), stub.opts)
}

func TestDispatchNotArmed(t *testing.T) {
	h := newHookState("test.symbol", TargetKey, SpoofedUUID)

	key := refstr.New(TargetKey)
	defer key.Release()

	assert.PanicsWithValue(t, ErrNotArmed, func() {
		h.dispatch(registry.NoEntry, key, nil, registry.NoOptions)
	})
}

func TestDispatchConcurrentMatches(t *testing.T) {
	assert := assert.New(t)

	stub := &stubOriginal{}
	h := newTestHook(t, stub)

	const workers = 16
	const rounds = 200

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			key := refstr.New(TargetKey)
			defer key.Release()

			for j := 0; j < rounds; j++ {
				v := h.dispatch(registry.NoEntry, key, nil, registry.NoOptions)
				text, ok := v.Text()
				if !ok || text != SpoofedUUID {
					t.Errorf("got %q, %v", text, ok)
					return
				}
				v.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(0, stub.calls)
	assert.EqualValues(1, h.cache.canonical.RefCount())
}
