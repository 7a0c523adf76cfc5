package sources

import (
	"github.com/threatgate/threatgate/interfaces"
	"github.com/threatgate/threatgate/internal/enum"
	er "github.com/threatgate/threatgate/internal/errors"
)

type registry struct {
	adapters map[enum.SourceKind]interfaces.SourceAdapter
}

// NewRegistry indexes the configured adapters by source kind.
func NewRegistry(adapters ...interfaces.SourceAdapter) interfaces.AdapterRegistry {
	indexed := make(map[enum.SourceKind]interfaces.SourceAdapter, len(adapters))
	for _, adapter := range adapters {
		indexed[adapter.Kind()] = adapter
	}
	return &registry{adapters: indexed}
}

func (r *registry) Resolve(kind enum.SourceKind) (interfaces.SourceAdapter, error) {
	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, er.ErrUnknownAdapter
	}
	return adapter, nil
}
