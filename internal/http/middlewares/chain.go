// Package middlewares holds the HTTP decorators shared by every route.
package middlewares

import "net/http"

// Middleware decorates an http.Handler. It matches chi's Use signature.
type Middleware func(http.Handler) http.Handler

// Chain applies mws left to right: Chain(h, A, B) runs A, then B, then h.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
