package service

import (
	"context"

	"github.com/iliyamo/studycafe-seat-pass/internal/model"
)

// PassCatalog is the read-only list of purchasable passes.
type PassCatalog struct {
	src CatalogReader
}

// NewPassCatalog wraps a catalog source.
func NewPassCatalog(src CatalogReader) *PassCatalog { return &PassCatalog{src: src} }

// List returns all definitions ordered by id.
func (c *PassCatalog) List(ctx context.Context) ([]model.PassDefinition, error) {
	return c.src.ListPassDefinitions(ctx)
}

// Get returns one definition or ErrNotFound.
func (c *PassCatalog) Get(ctx context.Context, id uint64) (model.PassDefinition, error) {
	return c.src.GetPassDefinition(ctx, id)
}
