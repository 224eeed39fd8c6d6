// Package middleware wraps a session store with persistence concerns that
// sit between the engine and the backend: encryption at rest and PII
// redaction. Middlewares compose; the engine sees a plain SessionStore.
package middleware

import "github.com/wattlebot/wattle/pkg/ports"

// Middleware decorates a SessionStore.
type Middleware func(next ports.SessionStore) ports.SessionStore

// Chain applies middlewares to a store, first middleware outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
