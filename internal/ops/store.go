package ops

import "github.com/tdmcli/tdmcli/internal/model"

// Store defines the persistence interface required by the engine.
// The concrete implementation is storage.Storage, but this interface allows
// alternative backends (in-memory, failing) for testing.
type Store interface {
	Load() (*model.Registry, error)
	Save(r *model.Registry) error
}
