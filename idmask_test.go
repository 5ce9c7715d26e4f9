package idmask

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spoofkit/idmask/rebind"
	"github.com/spoofkit/idmask/refstr"
	"github.com/spoofkit/idmask/registry"
)

func TestEnableFailOpen(t *testing.T) {
	assert := assert.New(t)

	installErr := errors.New("patch rejected")
	failing := func(string, registry.CopyPropertyFunc, *registry.CopyPropertyFunc) error {
		return installErr
	}

	h := newHookState(TargetSymbol, TargetKey, SpoofedUUID)
	err := h.enable(failing, h.dispatch)
	assert.ErrorIs(err, installErr)
	assert.False(h.enabled())
	assert.Nil(h.original)

	// The host keeps its original behavior: the real lookup still
	// answers with the real value.
	e := registry.Register("fail-open-device", map[string]string{
		registry.KeyPlatformUUID: "real-uuid",
	})
	key := refstr.New(registry.KeyPlatformUUID)
	defer key.Release()

	v := registry.CopyProperty(e, key, nil, registry.NoOptions)
	if assert.NotNil(v) {
		text, _ := v.Text()
		assert.Equal("real-uuid", text)
		v.Release()
	}
}

func TestEnableIdempotent(t *testing.T) {
	installs := 0
	stub := &stubOriginal{}
	install := func(symbol string, replacement registry.CopyPropertyFunc, original *registry.CopyPropertyFunc) error {
		installs++
		*original = stub.copyProperty
		return nil
	}

	h := newHookState(TargetSymbol, TargetKey, SpoofedUUID)
	require.NoError(t, h.enable(install, h.dispatch))
	require.NoError(t, h.enable(install, h.dispatch))

	assert.Equal(t, 1, installs)
	assert.True(t, h.enabled())
}

// End to end through the real rebinder: patch registry.CopyProperty,
// observe both the spoof and the delegation, then put the world back.
func TestEnableEndToEnd(t *testing.T) {
	assert := assert.New(t)

	require.NoError(t, Enable())
	t.Cleanup(func() {
		require.NoError(t, rebind.Restore(TargetSymbol))
		defaultHook.mu.Lock()
		defaultHook.armed = false
		defaultHook.original = nil
		defaultHook.mu.Unlock()
	})

	assert.True(Enabled())
	// A second Enable is a no-op.
	assert.NoError(Enable())

	e := registry.Register("e2e-device", map[string]string{
		registry.KeyPlatformUUID: "11111111-2222-3333-4444-555555555555",
		registry.KeyModel:        "TestRig1,1",
	})

	uuidKey := refstr.New(registry.KeyPlatformUUID)
	defer uuidKey.Release()

	v := registry.CopyProperty(e, uuidKey, nil, registry.NoOptions)
	if assert.NotNil(v) {
		text, ok := v.Text()
		assert.True(ok)
		assert.Equal(SpoofedUUID, text)
		v.Release()
	}

	// Any other key reaches the captured original.
	modelKey := refstr.New(registry.KeyModel)
	defer modelKey.Release()

	v = registry.CopyProperty(e, modelKey, nil, registry.NoOptions)
	if assert.NotNil(v) {
		text, _ := v.Text()
		assert.Equal("TestRig1,1", text)
		v.Release()
	}
}
