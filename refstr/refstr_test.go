package refstr

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValue(t *testing.T) {
	assert := assert.New(t)

	a := NewAllocator("test")
	v := a.NewValue("hello")
	assert.EqualValues(1, v.RefCount())
	assert.EqualValues(1, a.Live())

	text, ok := v.Text()
	assert.True(ok)
	assert.Equal("hello", text)

	v.Release()
	assert.EqualValues(0, a.Live())
}

func TestRetainRelease(t *testing.T) {
	assert := assert.New(t)

	a := NewAllocator("test")
	v := a.NewValue("shared")

	v2 := v.Retain()
	assert.Same(v, v2)
	assert.EqualValues(2, v.RefCount())

	v2.Release()
	assert.EqualValues(1, v.RefCount())
	assert.EqualValues(1, a.Live())

	text, ok := v.Text()
	assert.True(ok)
	assert.Equal("shared", text)

	v.Release()
	assert.EqualValues(0, a.Live())
}

func TestTextAfterRelease(t *testing.T) {
	v := New("gone")
	v.Release()

	_, ok := v.Text()
	assert.False(t, ok)
}

func TestTextNil(t *testing.T) {
	var v *Value
	_, ok := v.Text()
	assert.False(t, ok)
	assert.EqualValues(t, 0, v.RefCount())
}

func TestOverRelease(t *testing.T) {
	v := New("twice")
	v.Release()
	assert.PanicsWithValue(t,
		`refstr: over-release of value "twice" from allocator "default"`,
		v.Release)
}

func TestRetainReleased(t *testing.T) {
	v := New("dead")
	v.Release()
	assert.Panics(t, func() { v.Retain() })
}

func TestConcurrentRetainRelease(t *testing.T) {
	assert := assert.New(t)

	a := NewAllocator("test")
	v := a.NewValue("busy")

	const workers = 16
	const rounds = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				h := v.Retain()
				if _, ok := h.Text(); !ok {
					t.Error("live value failed conversion")
					return
				}
				h.Release()
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(1, v.RefCount())
	assert.EqualValues(1, a.Live())
	v.Release()
	assert.EqualValues(0, a.Live())
}
