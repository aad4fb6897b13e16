// Package middleware provides ports.RunStore decorators applied before run
// records reach the backing store.
package middleware

import "github.com/aretw0/flowgraph/pkg/ports"

// Middleware allows wrapping a RunStore to add behavior.
type Middleware func(ports.RunStore) ports.RunStore

// Chain wraps store with the middlewares. The first middleware is the
// outermost: it sees records first on Save and last on Load.
func Chain(store ports.RunStore, mws ...Middleware) ports.RunStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
