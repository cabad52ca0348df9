// Package export writes datasets and aggregates as CSV files.
package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/verte-zerg/streamdash/internal/model"
	"github.com/verte-zerg/streamdash/internal/query"
)

// File describes one written export.
type File struct {
	Kind string
	Path string
	Rows int
}

type aggregateExport struct {
	kind string
	name string
	key  model.Column
}

// DatasetFileName is the file name used for the filtered rows.
const DatasetFileName = "OlympicData.csv"

var aggregateExports = []aggregateExport{
	{kind: "sport", name: "Views_Per_Sport.csv", key: model.ColSport},
	{kind: "country", name: "Views_Per_Country.csv", key: model.ColCountry},
	{kind: "timeseries", name: "TimeSeries.csv", key: model.ColDate},
	{kind: "channel", name: "Views_Per_Channel.csv", key: model.ColChannel},
	{kind: "device", name: "Views_Per_Device.csv", key: model.ColDevice},
}

// WriteDataset writes the dataset rows in schema order.
func WriteDataset(w io.Writer, ds model.Dataset) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		header[i] = string(c)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	record := make([]string, len(ds.Columns))
	for _, e := range ds.Events {
		for i, c := range ds.Columns {
			record[i], _ = e.Field(c)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAggregate writes one key,measure row per entry.
func WriteAggregate(w io.Writer, r model.AggregateResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{string(r.Key), string(r.Measure)}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range r.Entries {
		if err := cw.Write([]string{e.Key, strconv.FormatFloat(e.Total, 'f', -1, 64)}); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes through a temp file in the target directory and renames it into place.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "export-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp export: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if err := write(writer); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// Bundle writes the filtered rows and every standard aggregate into dir.
func Bundle(dir string, ds model.Dataset) ([]File, error) {
	files := make([]File, 0, len(aggregateExports)+1)
	datasetPath := filepath.Join(dir, DatasetFileName)
	if err := WriteFile(datasetPath, func(w io.Writer) error {
		return WriteDataset(w, ds)
	}); err != nil {
		return files, fmt.Errorf("failed to export %s: %w", DatasetFileName, err)
	}
	files = append(files, File{Kind: "dataset", Path: datasetPath, Rows: ds.Len()})

	for _, spec := range aggregateExports {
		agg, err := query.AggregateBy(ds, spec.key, model.ColDuration)
		if err != nil {
			return files, fmt.Errorf("failed to aggregate %s: %w", spec.kind, err)
		}
		if spec.key == model.ColDate {
			agg = query.SortedByDate(agg)
		}
		path := filepath.Join(dir, spec.name)
		if err := WriteFile(path, func(w io.Writer) error {
			return WriteAggregate(w, agg)
		}); err != nil {
			return files, fmt.Errorf("failed to export %s: %w", spec.name, err)
		}
		files = append(files, File{Kind: spec.kind, Path: path, Rows: len(agg.Entries)})
	}
	return files, nil
}

// Records converts written files into export history entries sharing runID.
func Records(runID, filter string, files []File, at time.Time) []model.ExportRecord {
	records := make([]model.ExportRecord, 0, len(files))
	for _, f := range files {
		records = append(records, model.ExportRecord{
			RunID:     runID,
			Kind:      f.Kind,
			Path:      f.Path,
			Rows:      f.Rows,
			Filter:    filter,
			CreatedAt: at,
		})
	}
	return records
}
