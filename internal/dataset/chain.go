package dataset

import (
	"context"

	"github.com/verte-zerg/streamdash/internal/generator"
	"github.com/verte-zerg/streamdash/internal/logging"
	"github.com/verte-zerg/streamdash/internal/model"
)

// GeneratedSource produces synthetic events.
type GeneratedSource struct {
	Rows int
	// Seed of zero means seeded from the clock.
	Seed int64
}

// Name implements Provider.
func (s GeneratedSource) Name() string {
	return "generate"
}

// Load implements Provider.
func (s GeneratedSource) Load(_ context.Context) (model.Dataset, LoadStats, error) {
	rows := s.Rows
	if rows <= 0 {
		rows = generator.DefaultRows
	}
	gen := generator.New()
	if s.Seed != 0 {
		gen = generator.NewSeeded(s.Seed)
	}
	events := gen.Generate(rows)
	return model.NewDataset(events), LoadStats{Read: len(events), Kept: len(events)}, nil
}

// Fallback loads from Primary and switches to Secondary when Primary has no data.
type Fallback struct {
	Primary   Provider
	Secondary Provider
}

// Name implements Provider.
func (f Fallback) Name() string {
	return f.Primary.Name() + "|" + f.Secondary.Name()
}

// Load implements Provider.
func (f Fallback) Load(ctx context.Context) (model.Dataset, LoadStats, error) {
	ds, stats, err := f.Primary.Load(ctx)
	if err == nil {
		return ds, stats, nil
	}
	if !IsNoData(err) || ctx.Err() != nil {
		return model.Dataset{}, stats, err
	}
	logging.Warn().
		Err(err).
		Str("primary", f.Primary.Name()).
		Str("fallback", f.Secondary.Name()).
		Msg("using fallback data source")
	return f.Secondary.Load(ctx)
}
