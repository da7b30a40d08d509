package store

import (
	"fmt"

	"github.com/pocketbase/pocketbase/core"
)

// New creates a store for the configured backend. The PocketBase backend
// needs a bound app; the memory backend ignores it.
func New(backend Backend, app core.App) (Store, error) {
	switch backend {
	case BackendPocketBase:
		if app == nil {
			return nil, fmt.Errorf("pocketbase backend requires a bound app")
		}
		return NewPocketBaseStore(app), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}
