package middlewares

import "net/http"

// Middleware envuelve un http.Handler con un comportamiento transversal
// (logging, rate limit, headers).
type Middleware func(http.Handler) http.Handler

// Chain compone las capas sobre un handler. La primera de la lista queda como
// capa más externa: intercepta el request antes que el resto y es la última
// en ver la respuesta.
func Chain(h http.Handler, layers ...Middleware) http.Handler {
	wrapped := h
	for i := len(layers) - 1; i >= 0; i-- {
		wrapped = layers[i](wrapped)
	}
	return wrapped
}
