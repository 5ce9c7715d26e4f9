// Package refstr implements immutable text values with manual reference
// counting, modeled on the create/retain/release discipline of native
// string handles. A Value starts with one claim owned by whoever created
// it; every Retain adds an independent claim and every claim must be
// matched by exactly one Release. The refcount is the only mutable state,
// so values are safe to share between threads.
package refstr

import (
	"fmt"
	"sync/atomic"
)

// Allocator creates Values and tracks how many of its values are still
// live. The live count is what a leak check looks at: it only returns to
// its old level once every claim on every allocated value is released.
type Allocator struct {
	name string
	live atomic.Int64
}

// Default is the allocator used when callers pass a nil allocator
// reference, mirroring the "default allocator" convention of the native
// APIs this models.
var Default = NewAllocator("default")

func NewAllocator(name string) *Allocator {
	return &Allocator{name: name}
}

// NewValue returns a Value holding s with a refcount of one. The caller
// owns that claim and must Release it.
func (a *Allocator) NewValue(s string) *Value {
	v := &Value{alloc: a, text: s}
	v.refs.Store(1)
	a.live.Add(1)
	return v
}

// Live reports how many values allocated by a still have at least one
// outstanding claim.
func (a *Allocator) Live() int64 {
	return a.live.Load()
}

// New allocates from the Default allocator.
func New(s string) *Value {
	return Default.NewValue(s)
}

// Value is an immutable reference-counted string. The zero Value is not
// usable; create one through an Allocator.
type Value struct {
	alloc *Allocator
	text  string
	refs  atomic.Int64
}

// Retain adds a claim and returns v, so a retained handle can be passed
// along in one expression. Retaining a value whose claims have all been
// released is a use-after-free and panics.
func (v *Value) Retain() *Value {
	if v.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("refstr: retain of released value %q from allocator %q", v.text, v.alloc.name))
	}
	return v
}

// Release drops one claim. Releasing more times than claims were issued
// panics rather than corrupting the count.
func (v *Value) Release() {
	n := v.refs.Add(-1)
	switch {
	case n == 0:
		v.alloc.live.Add(-1)
	case n < 0:
		panic(fmt.Sprintf("refstr: over-release of value %q from allocator %q", v.text, v.alloc.name))
	}
}

// Text converts the value back to a Go string. The second return is false
// when the conversion cannot be performed: a nil handle or a value with no
// remaining claims.
func (v *Value) Text() (string, bool) {
	if v == nil || v.refs.Load() <= 0 {
		return "", false
	}
	return v.text, true
}

// RefCount reports the current number of outstanding claims.
func (v *Value) RefCount() int64 {
	if v == nil {
		return 0
	}
	return v.refs.Load()
}
