// Package registry is a small in-process property registry keyed by opaque
// entry handles, in the style of a platform device registry. The lookup
// path of interest is CopyProperty, which hands each caller its own
// reference-counted copy of a property value.
package registry

import (
	"sync"

	"github.com/spoofkit/idmask/refstr"
)

// Entry is an opaque handle to a registry entry. The zero handle never
// resolves.
type Entry uint32

const NoEntry Entry = 0

// OptionBits modifies a lookup. No options are currently defined; callers
// pass NoOptions.
type OptionBits uint32

const NoOptions OptionBits = 0

// CopyPropertyFunc is the signature of CopyProperty. Interception code
// traffics in this type.
type CopyPropertyFunc func(Entry, *refstr.Value, *refstr.Allocator, OptionBits) *refstr.Value

// Well-known property keys on the platform device entry.
const (
	KeyPlatformUUID   = "PlatformUUID"
	KeyPlatformSerial = "PlatformSerialNumber"
	KeyModel          = "ModelName"
)

// PlatformDeviceName names the entry that carries the host's identity
// properties.
const PlatformDeviceName = "PlatformDevice"

type node struct {
	name  string
	props map[string]string
}

var (
	mu      sync.RWMutex
	entries       = map[Entry]*node{}
	byName        = map[string]Entry{}
	nextID  Entry = 1

	platformOnce sync.Once
)

// Register creates an entry with the given name and properties and returns
// its handle. Registering a name twice replaces the handle the name
// resolves to; the old handle stays valid.
func Register(name string, props map[string]string) Entry {
	mu.Lock()
	defer mu.Unlock()

	n := &node{name: name, props: map[string]string{}}
	for k, v := range props {
		n.props[k] = v
	}

	e := nextID
	nextID++
	entries[e] = n
	byName[name] = e
	return e
}

// SetProperty sets key on an existing entry. Unknown handles are ignored.
func SetProperty(e Entry, key, value string) {
	mu.Lock()
	defer mu.Unlock()
	if n, ok := entries[e]; ok {
		n.props[key] = value
	}
}

// LookUp resolves a name to an entry handle, or NoEntry.
func LookUp(name string) Entry {
	mu.RLock()
	defer mu.RUnlock()
	return byName[name]
}

// Platform returns the platform device entry, populating it from the host
// OS on first use.
func Platform() Entry {
	platformOnce.Do(func() {
		Register(PlatformDeviceName, readPlatformIdentity())
	})
	return LookUp(PlatformDeviceName)
}

// CopyProperty looks up key on entry and returns a freshly allocated value
// the caller owns and must release. It returns nil for an unresolvable
// entry, a nil or dead key handle, or an absent property. A nil allocator
// falls back to refstr.Default.
//
// This function is an interception target and must stay out of line so
// every call site goes through its entry point.
//
//go:noinline
func CopyProperty(entry Entry, key *refstr.Value, alloc *refstr.Allocator, opts OptionBits) *refstr.Value {
	text, ok := key.Text()
	if !ok {
		return nil
	}

	mu.RLock()
	n := entries[entry]
	var value string
	found := false
	if n != nil {
		value, found = n.props[text]
	}
	mu.RUnlock()

	if !found {
		return nil
	}
	if alloc == nil {
		alloc = refstr.Default
	}
	return alloc.NewValue(value)
}
