package sandbox

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// Runtime wraps a goja VM bound to one Document
type Runtime struct {
	vm     *goja.Runtime
	config Config
	doc    *Document
	host   Host

	proxies    map[*html.Node]*goja.Object
	readyState string

	timerSeq int64
	timers   map[int64]bool // id -> cancelled
}

// New creates a runtime exposing doc to scripts
func New(config Config, doc *Document, host Host) (*Runtime, error) {
	if doc == nil || host == nil {
		return nil, fmt.Errorf("sandbox requires a document and a host")
	}

	r := &Runtime{
		vm:         goja.New(),
		config:     config,
		doc:        doc,
		host:       host,
		proxies:    make(map[*html.Node]*goja.Object),
		readyState: "loading",
		timers:     make(map[int64]bool),
	}

	if config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(config.MaxCallStack)
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}

	doc.OnListenerError = func(err error) {
		r.log("error", err.Error())
	}

	return r, nil
}

// Execute runs a script under the configured timeout
func (r *Runtime) Execute(script string) (*Result, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrNoScript
	}

	start := time.Now()
	val, err := r.guard(func() (goja.Value, error) {
		return r.vm.RunString(script)
	})
	result := &Result{Duration: time.Since(start)}
	if err != nil {
		return result, err
	}
	result.Value = exportValue(val)
	return result, nil
}

// SetReadyState updates document.readyState
func (r *Runtime) SetReadyState(state string) {
	r.readyState = state
}

// Close drops the VM and every element proxy
func (r *Runtime) Close() {
	if r.vm != nil {
		r.vm.Interrupt("runtime closed")
	}
	r.vm = nil
	r.proxies = nil
	r.timers = nil
}

// guard bounds a VM entry by the configured timeout
func (r *Runtime) guard(fn func() (goja.Value, error)) (goja.Value, error) {
	if r.vm == nil {
		return nil, fmt.Errorf("runtime closed")
	}
	if r.config.Timeout <= 0 {
		return fn()
	}

	var (
		mu   sync.Mutex
		done bool
	)
	vm := r.vm
	timer := time.AfterFunc(r.config.Timeout, func() {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			vm.Interrupt(ErrTimeout.Error())
		}
	})
	defer func() {
		mu.Lock()
		done = true
		mu.Unlock()
		timer.Stop()
		vm.ClearInterrupt()
	}()

	val, err := fn()
	if _, interrupted := err.(*goja.InterruptedError); interrupted {
		return val, fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return val, err
}

// call invokes a JS function, reporting exceptions to the console
func (r *Runtime) call(fn goja.Callable, this goja.Value, args ...goja.Value) {
	if r.vm == nil {
		return
	}
	if _, err := r.guard(func() (goja.Value, error) {
		return fn(this, args...)
	}); err != nil {
		r.log("error", "Uncaught "+err.Error())
	}
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	vm := r.vm

	// Remove dangerous globals
	vm.Set("require", goja.Undefined())
	vm.Set("process", goja.Undefined())
	vm.Set("module", goja.Undefined())
	vm.Set("exports", goja.Undefined())

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error"} {
		console.Set(level, r.makeConsoleFunc(level))
	}
	vm.Set("console", console)

	vm.Set("setTimeout", r.setTimeout)
	vm.Set("clearTimeout", r.clearTimeout)
	// Intervals would keep a context busy forever
	vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		return goja.Undefined()
	})

	parent := vm.NewObject()
	parent.Set("postMessage", r.postMessage)

	global := vm.GlobalObject()
	vm.Set("window", global)
	vm.Set("self", global)
	vm.Set("parent", parent)
	global.Set("addEventListener", r.makeListenerFunc(r.doc.Root()))

	return vm.Set("document", r.documentObject())
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.log(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (r *Runtime) log(level, msg string) {
	r.host.Console(LogEntry{Level: level, Message: msg, Time: time.Now()})
}

func (r *Runtime) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	r.timerSeq++
	id := r.timerSeq
	r.timers[id] = false
	r.host.Schedule(delay, func() {
		if r.timers == nil {
			return
		}
		cancelled, exists := r.timers[id]
		delete(r.timers, id)
		if exists && !cancelled {
			r.call(fn, goja.Undefined())
		}
	})
	return r.vm.ToValue(id)
}

func (r *Runtime) clearTimeout(call goja.FunctionCall) goja.Value {
	id := call.Argument(0).ToInteger()
	if _, ok := r.timers[id]; ok {
		r.timers[id] = true
	}
	return goja.Undefined()
}

func (r *Runtime) postMessage(call goja.FunctionCall) goja.Value {
	stringify, ok := goja.AssertFunction(r.vm.Get("JSON").ToObject(r.vm).Get("stringify"))
	if !ok {
		return goja.Undefined()
	}
	encoded, err := stringify(goja.Undefined(), call.Argument(0))
	if err != nil || goja.IsUndefined(encoded) {
		r.log("error", "postMessage: value is not serializable")
		return goja.Undefined()
	}
	r.host.PostToParent([]byte(encoded.String()))
	return goja.Undefined()
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}
