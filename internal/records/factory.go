package records

import "fmt"

// New creates a Store for the configured backend.
func New(backend, postgresDSN string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(postgresDSN)
	default:
		return nil, fmt.Errorf("unsupported record store backend: %s", backend)
	}
}
