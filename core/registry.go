package core

import "github.com/frozenpine/stack4go/cache"

// Handler consumes one packet of a layer, from is the sender address
// of the layer below.
type Handler[A any] interface {
	Receive(buf *cache.Buffer, from A) error
}

type HandlerFunc[A any] func(buf *cache.Buffer, from A) error

func (fn HandlerFunc[A]) Receive(buf *cache.Buffer, from A) error {
	return fn(buf, from)
}

// Registry protocol id to handler table of one layer.
type Registry[ID comparable, A any] struct {
	handlers map[ID]Handler[A]
}

func NewRegistry[ID comparable, A any]() *Registry[ID, A] {
	return &Registry[ID, A]{handlers: make(map[ID]Handler[A])}
}

// Add registers handler for id, replacing previous one.
func (r *Registry[ID, A]) Add(id ID, handler Handler[A]) {
	if handler == nil {
		delete(r.handlers, id)
		return
	}

	r.handlers[id] = handler
}

func (r *Registry[ID, A]) Remove(id ID) {
	delete(r.handlers, id)
}

func (r *Registry[ID, A]) Lookup(id ID) (Handler[A], bool) {
	handler, ok := r.handlers[id]
	return handler, ok
}

// Dispatch hands buf to the handler registered for id.
// found is false if no handler exists, which is not an error.
func (r *Registry[ID, A]) Dispatch(buf *cache.Buffer, id ID, from A) (found bool, err error) {
	handler, ok := r.handlers[id]
	if !ok {
		return false, nil
	}

	return true, handler.Receive(buf, from)
}
