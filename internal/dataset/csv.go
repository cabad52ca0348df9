package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/verte-zerg/streamdash/internal/logging"
	"github.com/verte-zerg/streamdash/internal/model"
)

// Supported input encodings.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource loads events from a CSV file.
type CSVSource struct {
	Path     string
	Encoding string
}

// Name implements Provider.
func (s CSVSource) Name() string {
	return "csv"
}

// Load implements Provider.
func (s CSVSource) Load(_ context.Context) (model.Dataset, LoadStats, error) {
	return LoadCSV(s.Path, s.Encoding)
}

// LoadCSV reads and cleans a viewership CSV file.
func LoadCSV(path, encoding string) (model.Dataset, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Dataset{}, LoadStats{}, fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close of a read-only file.
			_ = cerr
		}
	}()
	ds, stats, err := ReadCSV(f, encoding)
	if err != nil {
		return model.Dataset{}, stats, fmt.Errorf("failed to read %s: %w", path, err)
	}
	logging.Debug().
		Str("path", path).
		Int("read", stats.Read).
		Int("kept", stats.Kept).
		Int("dropped_blank", stats.DroppedBlank).
		Int("dropped_invalid", stats.DroppedInvalid).
		Msg("loaded csv")
	return ds, stats, nil
}

// ReadCSV parses a viewership CSV stream. Header order is free and extra columns are ignored.
func ReadCSV(r io.Reader, encoding string) (model.Dataset, LoadStats, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return model.Dataset{}, LoadStats{}, err
	}
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Dataset{}, LoadStats{}, fmt.Errorf("empty csv: %w", ErrMissingColumn)
		}
		return model.Dataset{}, LoadStats{}, fmt.Errorf("failed to read header: %w", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return model.Dataset{}, LoadStats{}, err
	}

	var rows []rawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Dataset{}, LoadStats{}, fmt.Errorf("failed to read row: %w", err)
		}
		rows = append(rows, rawRow{
			timestamp: cell(record, index[model.ColTimestamp]),
			viewerIP:  cell(record, index[model.ColViewerIP]),
			userID:    cell(record, index[model.ColUserID]),
			country:   cell(record, index[model.ColCountry]),
			sport:     cell(record, index[model.ColSport]),
			duration:  cell(record, index[model.ColDuration]),
			device:    cell(record, index[model.ColDevice]),
			channel:   cell(record, index[model.ColChannel]),
		})
	}
	events, stats := clean(rows)
	return model.NewDataset(events), stats, nil
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return stripBOM(r)
	case EncodingLatin1, "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func stripBOM(r io.Reader) (io.Reader, error) {
	head := make([]byte, len(utf8BOM))
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	head = head[:n]
	if bytes.Equal(head, utf8BOM) {
		return r, nil
	}
	return io.MultiReader(bytes.NewReader(head), r), nil
}

func headerIndex(header []string) (map[model.Column]int, error) {
	index := make(map[model.Column]int, len(model.EventColumns))
	for i, name := range header {
		name = strings.Trim(strings.TrimSpace(name), `"`)
		for _, col := range model.EventColumns {
			if strings.EqualFold(name, string(col)) {
				if _, seen := index[col]; !seen {
					index[col] = i
				}
			}
		}
	}
	var missing []string
	for _, col := range model.EventColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, string(col))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}
