package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// documentObject builds the global document binding
func (r *Runtime) documentObject() *goja.Object {
	vm := r.vm
	document := vm.NewObject()
	root := r.doc.Root()

	document.Set("querySelector", r.makeQueryFunc(root, false))
	document.Set("querySelectorAll", r.makeQueryFunc(root, true))
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).String()
		for _, n := range r.doc.QueryAll("[id]") {
			if ID(n) == id {
				return r.proxy(n)
			}
		}
		return goja.Null()
	})
	document.Set("addEventListener", r.makeListenerFunc(root))

	r.accessor(document, "readyState", func() goja.Value {
		return vm.ToValue(r.readyState)
	}, nil)
	r.accessor(document, "title", func() goja.Value {
		return vm.ToValue(r.doc.Title())
	}, nil)
	r.accessor(document, "body", func() goja.Value {
		return r.nodeValue(r.doc.Query("body"))
	}, nil)

	return document
}

// proxy returns the cached JS object for an element
func (r *Runtime) proxy(n *html.Node) *goja.Object {
	if obj, ok := r.proxies[n]; ok {
		return obj
	}

	vm := r.vm
	obj := vm.NewObject()
	r.proxies[n] = obj

	r.accessor(obj, "id", func() goja.Value { return vm.ToValue(ID(n)) }, nil)
	r.accessor(obj, "tagName", func() goja.Value {
		return vm.ToValue(strings.ToUpper(TagName(n)))
	}, nil)
	text := func() goja.Value { return vm.ToValue(TextContent(n)) }
	setText := func(v goja.Value) { SetTextContent(n, v.String()) }
	r.accessor(obj, "textContent", text, setText)
	r.accessor(obj, "innerText", text, setText)
	r.accessor(obj, "value", func() goja.Value {
		return vm.ToValue(Value(n))
	}, func(v goja.Value) {
		SetValue(n, v.String())
	})
	r.accessor(obj, "form", func() goja.Value {
		return r.nodeValue(ClosestForm(n.Parent))
	}, nil)

	obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := Attr(n, call.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		SetAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	obj.Set("addEventListener", r.makeListenerFunc(n))
	obj.Set("querySelector", r.makeQueryFunc(n, false))
	obj.Set("querySelectorAll", r.makeQueryFunc(n, true))
	obj.Set("click", func(call goja.FunctionCall) goja.Value {
		r.doc.Click(n)
		return goja.Undefined()
	})
	if TagName(n) == "form" {
		obj.Set("requestSubmit", func(call goja.FunctionCall) goja.Value {
			r.doc.Submit(n)
			return goja.Undefined()
		})
	}

	return obj
}

func (r *Runtime) nodeValue(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return r.proxy(n)
}

func (r *Runtime) makeQueryFunc(scope *html.Node, all bool) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		selector := call.Argument(0).String()
		if !all {
			return r.nodeValue(QueryFrom(scope, selector))
		}
		nodes := QueryAllFrom(scope, selector)
		items := make([]interface{}, 0, len(nodes))
		for _, n := range nodes {
			items = append(items, r.proxy(n))
		}
		return r.vm.NewArray(items...)
	}
}

func (r *Runtime) makeListenerFunc(n *html.Node) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		typ := call.Argument(0).String()
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			return goja.Undefined()
		}
		capture := call.Argument(2).ToBoolean()
		r.doc.AddEventListener(n, typ, capture, func(ev *Event) {
			if r.vm == nil {
				return
			}
			r.call(fn, r.nodeValue(ev.CurrentTarget), r.eventObject(ev))
		})
		return goja.Undefined()
	}
}

func (r *Runtime) eventObject(ev *Event) *goja.Object {
	vm := r.vm
	obj := vm.NewObject()
	obj.Set("type", ev.Type)
	obj.Set("target", r.nodeValue(ev.Target))
	obj.Set("currentTarget", r.nodeValue(ev.CurrentTarget))
	obj.Set("preventDefault", func(call goja.FunctionCall) goja.Value {
		ev.PreventDefault()
		return goja.Undefined()
	})
	obj.Set("stopPropagation", func(call goja.FunctionCall) goja.Value {
		ev.StopPropagation()
		return goja.Undefined()
	})
	r.accessor(obj, "defaultPrevented", func() goja.Value {
		return vm.ToValue(ev.DefaultPrevented())
	}, nil)
	return obj
}

// accessor defines a getter (and optional setter) property on obj
func (r *Runtime) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	vm := r.vm
	getter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get()
	})
	var setter goja.Value
	if set != nil {
		setter = vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
