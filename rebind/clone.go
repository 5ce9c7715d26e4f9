package rebind

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/apex/log"
	"github.com/pboyd/malloc"
)

// cloneCode copies a function's machine code into the executable arena
// and returns it as a callable value of type T. The copy keeps working
// after the function it came from has been patched.
func cloneCode[T any](code []byte) (*clonedFunc[T], error) {
	if err := cloneAllocator.BeginMutate(); err != nil {
		return nil, err
	}
	defer cloneAllocator.EndMutate()

	buf, err := cloneAllocator.Allocate(len(code))
	if err != nil {
		return nil, err
	}

	newCode, err := relocateFunc(code, buf)
	if err != nil {
		if dump, derr := disassemble(code); derr == nil {
			log.WithError(err).Debugf("rebind: cannot relocate original:\n%s", dump)
		}
		cloneAllocator.Free(buf)
		return nil, err
	}

	// Convince Go that the buffer of machine instructions is really a
	// function value of type T: a func value is a pointer to a word
	// holding the code address.
	codeData := unsafe.SliceData(newCode)
	cf := &clonedFunc[T]{
		clonedCode: newCode,
		// Keep a reference to codeData so it stays around.
		ref: &codeData,
	}
	cf.Func = *(*T)(unsafe.Pointer(&cf.ref))

	return cf, nil
}

// clonedFunc holds a relocated copy of a function.
type clonedFunc[T any] struct {
	Func T

	// The data for this slice lives in the mmap arena and is managed by
	// cloneAllocator. Keep a reference in order to free it.
	clonedCode []byte
	ref        **byte
}

// Free releases the memory associated with the cloned function. The Func
// field must not be called afterward.
func (cf *clonedFunc[T]) Free() {
	cloneAllocator.BeginMutate()
	defer cloneAllocator.EndMutate()

	cloneAllocator.Free(cf.clonedCode)

	cf.clonedCode = nil
	*cf.ref = nil
	cf.ref = nil
}

// allocator manages an arena of executable memory. Pages stay RX except
// inside a BeginMutate/EndMutate pair.
type allocator struct {
	*malloc.Arena
	mprotect func(int) error
	mu       sync.Mutex
	initOnce sync.Once
	mutable  bool
}

var cloneAllocator = &allocator{}

func (a *allocator) init(startSize int) error {
	var err error
	a.initOnce.Do(func() {
		be := malloc.MmapBackend(malloc.MmapProt(mprotectExec), malloc.MmapFlags(map32Bit))
		if protBE, ok := be.(malloc.ProtectedArenaBackend); ok {
			a.mprotect = protBE.Protect
		} else {
			a.mprotect = func(int) error {
				return nil
			}
		}

		a.Arena = malloc.NewArena(uint64(startSize), malloc.Backend(be))
		if a.Arena == nil {
			err = errors.New("unable to initialize arena")
			return
		}
		a.mutable = true
	})
	return err
}

func (a *allocator) BeginMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// BeginMutate can be called before the initial allocation.
	if a.mprotect == nil || a.mutable {
		return nil
	}

	err := a.mprotect(mprotectRWX)
	if err == nil {
		a.mutable = true
	}
	return err
}

func (a *allocator) EndMutate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		return nil
	}

	err := a.mprotect(mprotectRX)
	if err == nil {
		a.mutable = false
	}
	return err
}

func (a *allocator) Allocate(size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.init(size)
	if err != nil {
		return nil, fmt.Errorf("error initializing arena: %w", err)
	}

	if !a.mutable {
		panic("Allocate called in immutable state")
	}

	return malloc.MallocSlice[byte](a.Arena, size)
}

func (a *allocator) Free(buf []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mutable {
		panic("Free called in immutable state")
	}

	malloc.FreeSlice(a.Arena, buf)
}
