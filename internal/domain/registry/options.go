package registry

// Option is a functional configuration hook for the Hub.
type Option func(*Hub)

// WithMaxConnections bounds admission; past the ceiling Register returns
// ErrRegistryFull and the transport refuses the session.
func WithMaxConnections(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.config.maxConnections = n
		}
	}
}

// WithAttachHook runs after a connection is indexed. The session service
// wires the presence tracker here.
func WithAttachHook(fn func(conn Connector)) Option {
	return func(h *Hub) {
		h.config.onAttach = fn
	}
}

// WithDetachHook runs after a connection leaves every index, before the
// connection closes. The session service wires subscription teardown and the
// presence cascade here.
func WithDetachHook(fn func(conn Connector)) Option {
	return func(h *Hub) {
		h.config.onDetach = fn
	}
}
