package idmask

import (
	"github.com/spoofkit/idmask/refstr"
	"github.com/spoofkit/idmask/registry"
)

// dispatchCopyProperty is the replacement installed over the target
// symbol. It must mirror registry.CopyProperty's signature exactly.
func dispatchCopyProperty(entry registry.Entry, key *refstr.Value, alloc *refstr.Allocator, opts registry.OptionBits) *refstr.Value {
	return defaultHook.dispatch(entry, key, alloc, opts)
}

// dispatch answers a matching call from the value cache and forwards
// everything else, arguments unmodified, to the captured original. It may
// be entered from any number of threads at once; no state outlives a
// single invocation.
func (h *hookState) dispatch(entry registry.Entry, key *refstr.Value, alloc *refstr.Allocator, opts registry.OptionBits) *refstr.Value {
	original := h.original
	if original == nil {
		panic(ErrNotArmed)
	}

	// A key that cannot be read as text is a non-match, not an error.
	text, ok := key.Text()
	if !ok || text != h.key {
		return original(entry, key, alloc, opts)
	}

	return h.cache.acquire()
}
