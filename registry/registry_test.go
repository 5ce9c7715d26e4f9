package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spoofkit/idmask/refstr"
)

func TestCopyProperty(t *testing.T) {
	assert := assert.New(t)

	e := Register("test-device", map[string]string{"Color": "green"})
	assert.NotEqual(NoEntry, e)
	assert.Equal(e, LookUp("test-device"))

	key := refstr.New("Color")
	defer key.Release()

	alloc := refstr.NewAllocator("test")
	v := CopyProperty(e, key, alloc, NoOptions)
	if assert.NotNil(v) {
		text, ok := v.Text()
		assert.True(ok)
		assert.Equal("green", text)
		assert.EqualValues(1, v.RefCount())
		assert.EqualValues(1, alloc.Live())
		v.Release()
		assert.EqualValues(0, alloc.Live())
	}
}

func TestCopyPropertyIndependentCopies(t *testing.T) {
	assert := assert.New(t)

	e := Register("copies-device", map[string]string{"Size": "large"})
	key := refstr.New("Size")
	defer key.Release()

	a := CopyProperty(e, key, nil, NoOptions)
	b := CopyProperty(e, key, nil, NoOptions)
	if assert.NotNil(a) && assert.NotNil(b) {
		assert.NotSame(a, b)
		a.Release()

		// Releasing one copy must not touch the other.
		text, ok := b.Text()
		assert.True(ok)
		assert.Equal("large", text)
		b.Release()
	}
}

func TestCopyPropertyMisses(t *testing.T) {
	assert := assert.New(t)

	e := Register("miss-device", map[string]string{"Known": "yes"})

	t.Run("nil key", func(t *testing.T) {
		assert.Nil(CopyProperty(e, nil, nil, NoOptions))
	})

	t.Run("dead key", func(t *testing.T) {
		key := refstr.New("Known")
		key.Release()
		assert.Nil(CopyProperty(e, key, nil, NoOptions))
	})

	t.Run("unknown key", func(t *testing.T) {
		key := refstr.New("Unknown")
		defer key.Release()
		assert.Nil(CopyProperty(e, key, nil, NoOptions))
	})

	t.Run("unknown entry", func(t *testing.T) {
		key := refstr.New("Known")
		defer key.Release()
		assert.Nil(CopyProperty(NoEntry, key, nil, NoOptions))
		assert.Nil(CopyProperty(Entry(0xffff), key, nil, NoOptions))
	})
}

func TestSetProperty(t *testing.T) {
	assert := assert.New(t)

	e := Register("set-device", nil)
	SetProperty(e, "Mode", "fast")

	key := refstr.New("Mode")
	defer key.Release()

	v := CopyProperty(e, key, nil, NoOptions)
	if assert.NotNil(v) {
		text, _ := v.Text()
		assert.Equal("fast", text)
		v.Release()
	}
}

func TestPlatform(t *testing.T) {
	e := Platform()
	assert.NotEqual(t, NoEntry, e)
	assert.Equal(t, e, Platform())

	// The identity properties are host-dependent. Just prove the lookup
	// path works when one is present.
	key := refstr.New(KeyPlatformUUID)
	defer key.Release()

	if v := CopyProperty(e, key, nil, NoOptions); v != nil {
		text, ok := v.Text()
		assert.True(t, ok)
		assert.NotEmpty(t, text)
		v.Release()
	}
}
