// Package bus is a typed publish/subscribe registry. Handlers for an
// event type run synchronously, in registration order, on the
// publisher's goroutine. The whole simulation is single-threaded, so
// there is no locking here.
package bus

import (
	"reflect"
	"unsafe"
)

type handler struct {
	key uintptr
	fn  any
}

// handlerKey identifies a registered function value. Funcs are
// pointer-shaped, so the interface data word is the funcval address:
// the same func value yields the same key, while method values bound
// to different receivers allocate distinct funcvals and get distinct
// keys. The code pointer alone cannot tell those apart.
func handlerKey(fn any) uintptr {
	type eface struct {
		typ, data unsafe.Pointer
	}
	return uintptr((*eface)(unsafe.Pointer(&fn)).data)
}

type Bus struct {
	subs map[reflect.Type][]handler
}

func New() *Bus {
	return &Bus{subs: map[reflect.Type][]handler{}}
}

// Subscribe registers fn for events of type T. Registering the
// identical function value twice for the same type is a no-op; method
// values on different receivers count as different handlers.
func Subscribe[T any](b *Bus, fn func(T)) {
	if fn == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	key := handlerKey(fn)
	for _, h := range b.subs[t] {
		if h.key == key {
			return
		}
	}
	b.subs[t] = append(b.subs[t], handler{key: key, fn: fn})
}

// Unsubscribe removes a previously registered handler. It must be
// passed the same function value that was subscribed; unknown handlers
// are ignored.
func Unsubscribe[T any](b *Bus, fn func(T)) {
	if fn == nil {
		return
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	key := handlerKey(fn)
	list := b.subs[t]
	for i, h := range list {
		if h.key == key {
			b.subs[t] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every handler registered for T, in
// registration order. Handlers subscribing or unsubscribing during
// delivery affect later publishes, not the one in flight.
func Publish[T any](b *Bus, v T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	list := b.subs[t]
	for _, h := range list {
		if fn, ok := h.fn.(func(T)); ok {
			fn(v)
		}
	}
}
