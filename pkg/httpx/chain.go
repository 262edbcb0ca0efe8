package httpx

import "net/http"

// Chain wraps h with the given middlewares. The first middleware listed is
// the outermost, so it runs first on the way in.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
