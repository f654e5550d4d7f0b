package server

import (
	"net/http"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Uses [http.ServeMux] internally for routing, with method-qualified patterns.
// Global middleware wraps the whole mux so it also sees pre-flights and unmatched paths.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers a handler for the specified HTTP method and path.
//
// Route middleware wraps only this handler and runs after the global stack.
func (r *BasicRouter) Handle(method, path string, handler http.Handler, middleware ...Middleware) {
	r.mux.Handle(method+" "+path, chain(handler, middleware))
}

// Handler registers a custom Handler implementation.
//
// All routes returned by [Handler.Routes] are registered with their own middleware.
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(route.Method, route.Path, route.Handler, route.Middleware...)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Apply(r.mux).ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware.
//
// Middleware is applied in reverse order, so the first added is outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	return chain(handler, r.middlewares)
}

func chain(handler http.Handler, middlewares []Middleware) http.Handler {
	wrapped := handler

	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}
