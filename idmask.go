package idmask

import (
	"errors"
	"sync"

	"github.com/apex/log"

	"github.com/spoofkit/idmask/rebind"
	"github.com/spoofkit/idmask/refstr"
	"github.com/spoofkit/idmask/registry"
)

const (
	// SpoofedUUID is the payload handed to every caller that asks for the
	// platform UUID. Baked in at build time; there is no runtime
	// configuration surface.
	SpoofedUUID = "DEADBEEF-DEAD-BEEF-DEAD-BEEFDEADBEEF"

	// TargetKey is the one property key that triggers spoofing. Matching
	// is exact and case-sensitive.
	TargetKey = registry.KeyPlatformUUID

	// TargetSymbol names the intercepted function.
	TargetSymbol = "github.com/spoofkit/idmask/registry.CopyProperty"
)

// ErrNotArmed is the panic value for the must-never-happen case of the
// dispatcher running without a captured original. Correct construction
// order (capture before patch) makes it unreachable.
var ErrNotArmed = errors.New("idmask: dispatcher entered without a captured original")

// InstallFunc is the rebinding primitive: patch symbol so future calls
// reach replacement, filling *original with the previous implementation
// before the patch can take effect.
type InstallFunc func(symbol string, replacement registry.CopyPropertyFunc, original *registry.CopyPropertyFunc) error

func rebindInstall(symbol string, replacement registry.CopyPropertyFunc, original *registry.CopyPropertyFunc) error {
	return rebind.Install(symbol, replacement, original)
}

// hookState is the process-wide interception state: constructed empty,
// armed exactly once by enable, read-only afterward.
type hookState struct {
	symbol string
	key    string

	mu    sync.Mutex
	armed bool

	// original is written once by enable, before the patch that makes
	// dispatch reachable, and never mutated again. Reads after that
	// publication need no lock.
	original registry.CopyPropertyFunc

	cache valueCache
}

func newHookState(symbol, key, payload string) *hookState {
	return &hookState{
		symbol: symbol,
		key:    key,
		cache:  valueCache{payload: payload, newValue: refstr.New},
	}
}

var defaultHook = newHookState(TargetSymbol, TargetKey, SpoofedUUID)

// Enable installs the interception over the target symbol. It is safe to
// call more than once; only the first call does work. On failure the
// process keeps its original, un-intercepted behavior and the error is
// both logged and returned.
func Enable() error {
	return defaultHook.enable(rebindInstall, dispatchCopyProperty)
}

// Enabled reports whether the interception is armed.
func Enabled() bool {
	return defaultHook.enabled()
}

func (h *hookState) enable(install InstallFunc, replacement registry.CopyPropertyFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.armed {
		return nil
	}

	if err := install(h.symbol, replacement, &h.original); err != nil {
		h.original = nil
		log.WithError(err).WithField("symbol", h.symbol).
			Error("idmask: interception unavailable, host keeps original behavior")
		return err
	}

	h.armed = true
	log.WithField("symbol", h.symbol).WithField("key", h.key).
		Info("idmask: interception installed")
	return nil
}

func (h *hookState) enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.armed
}
