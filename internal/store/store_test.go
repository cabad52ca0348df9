package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/verte-zerg/streamdash/internal/dataset"
	"github.com/verte-zerg/streamdash/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "streamdash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func sampleEvents() []model.Event {
	return []model.Event{
		{Timestamp: time.Date(2024, time.June, 7, 10, 0, 0, 0, time.UTC), ViewerIP: "10.0.0.1", UserID: "10001", Country: "USA", Sport: "Swimming", Duration: 30, Device: "Desktop", Channel: "Main Channel"},
		{Timestamp: time.Date(2024, time.June, 8, 11, 0, 0, 0, time.UTC), ViewerIP: "10.0.0.2", UserID: "10002", Country: "Chile", Sport: "Soccer", Duration: 60.5, Device: "Mobile", Channel: "Live Sports"},
	}
}

func TestSaveAndLoadDataset(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	ds := model.NewDataset(sampleEvents())
	if err := st.SaveDataset(ctx, "default", "csv", ds); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.LoadDataset(ctx, "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 events, got %d", got.Len())
	}
	for i := range ds.Events {
		want := ds.Events[i]
		have := got.Events[i]
		if !have.Timestamp.Equal(want.Timestamp) {
			t.Fatalf("timestamp mismatch at %d", i)
		}
		have.Timestamp = want.Timestamp
		if have != want {
			t.Fatalf("event mismatch at %d: %+v vs %+v", i, have, want)
		}
	}

	if err := st.SaveDataset(ctx, "default", "generate", model.NewDataset(sampleEvents()[:1])); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err = st.LoadDataset(ctx, "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("expected snapshot to be replaced, got %d events", got.Len())
	}
	infos, err := st.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Source != "generate" || infos[0].Rows != 1 {
		t.Fatalf("unexpected dataset info: %+v", infos)
	}
}

func TestLoadMissingDataset(t *testing.T) {
	st := openTestStore(t)
	_, err := st.LoadDataset(context.Background(), "nope")
	if !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, _, err = Source{Store: st, Dataset: "nope"}.Load(context.Background())
	if !errors.Is(err, dataset.ErrNoData) {
		t.Fatalf("expected ErrNoData from source, got %v", err)
	}
}

func TestSourceLoadsSnapshot(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if err := st.SaveDataset(ctx, "olympics", "api", model.NewDataset(sampleEvents())); err != nil {
		t.Fatalf("save: %v", err)
	}
	ds, stats, err := Source{Store: st, Dataset: "olympics"}.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ds.Len() != 2 || stats.Kept != 2 {
		t.Fatalf("unexpected load: %d rows, %+v", ds.Len(), stats)
	}
}

func TestRecordAndListExports(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	spec := model.FilterSpec{
		DateRange: &model.DateRange{
			Start: time.Date(2024, time.June, 7, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.June, 8, 0, 0, 0, 0, time.UTC),
		},
		Countries: []string{"USA"},
	}
	filter, err := EncodeFilter(spec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	runID := NewRunID()
	created := time.Date(2024, time.June, 9, 12, 0, 0, 0, time.UTC)
	records := []model.ExportRecord{
		{RunID: runID, Kind: "dataset", Path: "/tmp/OlympicData.csv", Rows: 2, Filter: filter, CreatedAt: created},
		{RunID: runID, Kind: "sport", Path: "/tmp/Views_Per_Sport.csv", Rows: 2, Filter: filter, CreatedAt: created},
	}
	if err := st.RecordExports(ctx, records); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, err := st.ListExports(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("expected distinct generated ids: %+v", got)
	}
	if got[0].RunID != runID || got[0].Kind != "dataset" || !got[0].CreatedAt.Equal(created) {
		t.Fatalf("unexpected record: %+v", got[0])
	}
	decoded, err := DecodeFilter(got[0].Filter)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded.Countries, spec.Countries) || !decoded.DateRange.Start.Equal(spec.DateRange.Start) {
		t.Fatalf("unexpected decoded filter: %+v", decoded)
	}

	limited, err := st.ListExports(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected 1 record, got %d", len(limited))
	}
}
