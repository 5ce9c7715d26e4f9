// Package rebind patches a named Go function at runtime so that every
// future call reaches a replacement, while keeping a callable copy of the
// original for delegation. The original is captured before the patch is
// written, so a caller that installs a replacement and delegates through
// the returned original never races against its own hook.
//
// Limitations, inherited from rewriting live machine code:
//   - amd64 and arm64 only
//   - relies on internal Go runtime layouts that can change between releases
//   - a function the compiler inlined has no call sites to intercept; mark
//     interception targets //go:noinline
//   - code loaded after Install (plugins) is not covered
package rebind

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrSymbolNotFound reports that no loaded image contains the symbol.
	ErrSymbolNotFound = errors.New("rebind: symbol not found in any loaded image")

	// ErrPatchFailed reports that the target was found but could not be
	// rewritten, usually because the OS refused the page-protection change.
	ErrPatchFailed = errors.New("rebind: unable to patch target")

	ErrAlreadyInstalled = errors.New("rebind: symbol already installed")
	ErrNotInstalled     = errors.New("rebind: symbol not installed")
)

type binding struct {
	code  []byte // live machine code of the target
	saved []byte // pre-patch bytes, for Restore
	free  func() // releases the cloned original
}

var (
	mu        sync.Mutex
	installed = map[string]*binding{}
)

// Install rewrites the function named by symbol so all future calls reach
// replacement, and stores a callable copy of the previous implementation
// in *original. The capture happens before the jump is written: once any
// caller can observe the patched target, *original is already populated.
//
// T must match the target's signature; that cannot be checked against a
// bare symbol name, so a mismatch corrupts the stack at call time.
func Install[T any](symbol string, replacement T, original *T) error {
	replv := reflect.ValueOf(replacement)
	if replv.Kind() != reflect.Func {
		return fmt.Errorf("rebind: replacement is not a function, kind: %v", replv.Kind())
	}
	if replv.IsNil() {
		return errors.New("rebind: replacement is nil")
	}

	mu.Lock()
	defer mu.Unlock()

	if _, ok := installed[symbol]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalled, symbol)
	}

	code, err := findSymbol(symbol)
	if err != nil {
		return err
	}

	cf, err := cloneCode[T](code)
	if err != nil {
		return fmt.Errorf("%w: cloning original: %v", ErrPatchFailed, err)
	}

	saved := make([]byte, len(code))
	copy(saved, code)

	// Publish the original before the jump lands.
	if original != nil {
		*original = cf.Func
	}

	err = patch(code, func() error {
		return insertJump(code, replv.Pointer())
	})
	if err != nil {
		if original != nil {
			var zero T
			*original = zero
		}
		cf.Free()
		return fmt.Errorf("%w: %v", ErrPatchFailed, err)
	}

	installed[symbol] = &binding{code: code, saved: saved, free: cf.Free}
	return nil
}

// Restore puts the original bytes of an installed symbol back and frees
// the cloned copy. Callers still holding the original from Install must
// not use it afterward.
func Restore(symbol string) error {
	mu.Lock()
	defer mu.Unlock()

	b, ok := installed[symbol]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, symbol)
	}

	err := patch(b.code, func() error {
		copy(b.code, b.saved)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPatchFailed, err)
	}

	b.free()
	delete(installed, symbol)
	return nil
}

// Installed reports whether symbol currently has a replacement in place.
func Installed(symbol string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := installed[symbol]
	return ok
}

// patch runs write with the target pages writable, then drops back to
// read-execute and flushes the instruction cache.
func patch(code []byte, write func() error) error {
	if err := mprotect(code, mprotectRWX); err != nil {
		return err
	}
	defer func() {
		mprotect(code, mprotectRX)
		cacheflush(code)
	}()

	return write()
}
