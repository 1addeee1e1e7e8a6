package hook

import (
	"fmt"
	"sync"

	"github.com/runnerr0/broadcastmonitor/internal/intent"
)

// Method describes a method a Host exposes. IntentIndex is the position of
// the intent argument.
type Method struct {
	Class       string
	Name        string
	Arity       int
	IntentIndex int
}

// Args builds an argument list for m with in at its intent position.
func (m Method) Args(in *intent.Intent) []any {
	args := make([]any, m.Arity)
	if m.IntentIndex >= 0 && m.IntentIndex < m.Arity {
		args[m.IntentIndex] = in
	}
	return args
}

// PlatformMethods returns the broadcast-sending methods present in a
// process of the given role.
func PlatformMethods(role Role) []Method {
	switch role {
	case RoleSystem:
		return []Method{
			{classAMS, "broadcastIntentLocked", 4, 2},
		}
	case RoleApp:
		return []Method{
			{classContextImpl, "sendBroadcast", 1, 0},
			{classContextImpl, "sendStickyBroadcast", 1, 0},
			{classContextImpl, "sendOrderedBroadcast", 2, 0},
			{classContextImpl, "sendOrderedBroadcast", 7, 0},
			{classWrapper, "sendBroadcast", 1, 0},
			{classManagerProxy, "broadcastIntent", 3, 1},
		}
	}
	return nil
}

type methodKey struct {
	class, name string
	arity       int
}

// Host is an in-process Installer over a fixed set of methods. Call
// invokes a method, running its before-hooks first.
type Host struct {
	mu      sync.RWMutex
	methods map[methodKey]Method
	hooks   map[methodKey][]Callback
}

// NewHost returns a Host exposing methods.
func NewHost(methods ...Method) *Host {
	h := &Host{
		methods: make(map[methodKey]Method, len(methods)),
		hooks:   make(map[methodKey][]Callback),
	}
	for _, m := range methods {
		h.methods[methodKey{m.Class, m.Name, m.Arity}] = m
	}
	return h
}

// InstallBeforeHook implements Installer.
func (h *Host) InstallBeforeHook(className, methodName string, arity int, cb Callback) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	matched := 0
	for key := range h.methods {
		if key.class != className || key.name != methodName {
			continue
		}
		if arity != AnyArity && key.arity != arity {
			continue
		}
		h.hooks[key] = append(h.hooks[key], cb)
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("%w: %s.%s", ErrMethodNotFound, className, methodName)
	}
	return nil
}

// Method returns the method of className with the given name and arity.
func (h *Host) Method(className, methodName string, arity int) (Method, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.methods[methodKey{className, methodName, arity}]
	return m, ok
}

// Hooked returns how many callbacks are installed on a method.
func (h *Host) Hooked(className, methodName string, arity int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.hooks[methodKey{className, methodName, arity}])
}

// Call runs the before-hooks of the method matching className, methodName
// and len(args).
func (h *Host) Call(className, methodName string, args ...any) error {
	key := methodKey{className, methodName, len(args)}

	h.mu.RLock()
	_, ok := h.methods[key]
	hooks := append([]Callback(nil), h.hooks[key]...)
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s.%s/%d", ErrMethodNotFound, className, methodName, len(args))
	}
	for _, cb := range hooks {
		cb(args)
	}
	return nil
}
