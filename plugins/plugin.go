// Package plugins implements the API function registry: named handlers a
// request path resolves to, contributed either statically (in-tree
// builtins whose constructors call Register when the backend starts) or
// dynamically (a directory of compiled .so plugins scanned at startup). Grounded on
// original_source/src/device/api.py's APIFunct/load_dir and
// original_source/src/device/pluginloader.py's load_plugins.
package plugins

import (
	"fmt"
	"sync"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/httpcodec"
)

// Context carries everything an API function needs to act: the
// originating request (nil for locally-triggered calls from the event
// bus or automation engine), the path's trailing segments as args, and a
// decoded JSON body.
type Context struct {
	Request *httpcodec.Request
	Args    []string
	Body    map[string]any
}

// Func is one named API function, the Go equivalent of APIFunct.
type Func interface {
	API(ctx *Context) apiresult.Result
}

// PermissionOverrider is implemented by functions that need a
// permission level other than the router's default for their path
// (evt.py's Evt.permissions override is the grounding case: internal
// event dispatch runs at a fixed elevated level regardless of caller).
type PermissionOverrider interface {
	Permissions(def int) int
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Func{}
)

// Register adds fn to the registry under name, overwriting any previous
// registration. Builtin constructors call this when the backend
// registers them; the dynamic loader calls it once per .so it loads.
func Register(name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup returns the function registered under name, if any.
func Lookup(name string) (Func, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

// Names returns every currently registered function name.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Permissions resolves the effective permission level for name: the
// function's own override if it implements PermissionOverrider,
// otherwise def.
func Permissions(name string, def int) int {
	fn, ok := Lookup(name)
	if !ok {
		return def
	}
	if po, ok := fn.(PermissionOverrider); ok {
		return po.Permissions(def)
	}
	return def
}

// Invoke looks up name and runs it, returning a failed Result if no such
// function is registered.
func Invoke(name string, ctx *Context) apiresult.Result {
	fn, ok := Lookup(name)
	if !ok {
		return apiresult.Msg(fmt.Sprintf("no such function: %s", name), false)
	}
	return fn.API(ctx)
}
