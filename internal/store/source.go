package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/streamdash/internal/dataset"
	"github.com/verte-zerg/streamdash/internal/model"
)

// Source serves a stored snapshot as a dataset provider.
type Source struct {
	Store   *Store
	Dataset string
}

// Name implements dataset.Provider.
func (s Source) Name() string {
	return "store"
}

// Load implements dataset.Provider. A missing snapshot is reported as dataset.ErrNoData.
func (s Source) Load(ctx context.Context) (model.Dataset, dataset.LoadStats, error) {
	ds, err := s.Store.LoadDataset(ctx, s.Dataset)
	if err != nil {
		if errors.Is(err, ErrDatasetNotFound) {
			return model.Dataset{}, dataset.LoadStats{}, fmt.Errorf("%w: %w", dataset.ErrNoData, err)
		}
		return model.Dataset{}, dataset.LoadStats{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return ds, dataset.LoadStats{Read: ds.Len(), Kept: ds.Len()}, nil
}
