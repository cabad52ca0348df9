package dashboard

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/streamdash/internal/model"
)

func at(day, hour int) time.Time {
	return time.Date(2024, time.June, day, hour, 0, 0, 0, time.UTC)
}

func sampleDataset() model.Dataset {
	return model.NewDataset([]model.Event{
		{Timestamp: at(7, 9), UserID: "10001", Country: "USA", Sport: "Swimming", Duration: 30, Device: "Desktop", Channel: "Main Channel"},
		{Timestamp: at(7, 10), UserID: "10002", Country: "Chile", Sport: "Soccer", Duration: 60, Device: "Mobile", Channel: "Events Channel 1"},
		{Timestamp: at(8, 11), UserID: "10003", Country: "USA", Sport: "Soccer", Duration: 45, Device: "Tablet", Channel: "Main Channel"},
		{Timestamp: at(9, 12), UserID: "10004", Country: "Brazil", Sport: "Tennis", Duration: 20, Device: "Desktop", Channel: "Events Channel 2"},
		{Timestamp: at(10, 13), UserID: "10001", Country: "Chile", Sport: "Swimming", Duration: 10, Device: "Mobile", Channel: "Main Channel"},
	})
}

type fakeRecorder struct {
	records []model.ExportRecord
}

func (f *fakeRecorder) RecordExports(_ context.Context, records []model.ExportRecord) error {
	f.records = append(f.records, records...)
	return nil
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m *Model, msgs ...tea.Msg) {
	t.Helper()
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func TestNewModelSelectsDatasetSpan(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	r := m.Spec().DateRange
	if r == nil {
		t.Fatalf("expected default date range")
	}
	if !r.Start.Equal(at(7, 0)) || !r.End.Equal(at(10, 0)) {
		t.Fatalf("unexpected range: %+v", r)
	}
	if m.report.Summary.Events != 5 {
		t.Fatalf("expected all events, got %d", m.report.Summary.Events)
	}
	if !reflect.DeepEqual(m.domains.Countries, []string{"USA", "Chile", "Brazil"}) {
		t.Fatalf("unexpected country domain: %v", m.domains.Countries)
	}
}

func TestPickerAppliesSelection(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("c"))
	if m.picker == nil {
		t.Fatalf("expected picker to open")
	}
	press(t, m, tea.KeyMsg{Type: tea.KeySpace}, key("j"), key("j"), tea.KeyMsg{Type: tea.KeySpace}, tea.KeyMsg{Type: tea.KeyEnter})
	if m.picker != nil {
		t.Fatalf("expected picker to close")
	}
	if !reflect.DeepEqual(m.Spec().Countries, []string{"USA", "Brazil"}) {
		t.Fatalf("unexpected countries: %v", m.Spec().Countries)
	}
	if m.report.Summary.Events != 3 {
		t.Fatalf("expected 3 events, got %d", m.report.Summary.Events)
	}
}

func TestPickerEscapeKeepsSelection(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("d"), tea.KeyMsg{Type: tea.KeySpace}, tea.KeyMsg{Type: tea.KeyEsc})
	if m.picker != nil || len(m.Spec().Devices) != 0 {
		t.Fatalf("escape must discard picker changes: %v", m.Spec().Devices)
	}
}

func TestPickerClearMeansAll(t *testing.T) {
	m := NewModel(sampleDataset(), Options{Filter: model.FilterSpec{Sports: []string{"Soccer"}}})
	if m.report.Summary.Events != 2 {
		t.Fatalf("expected 2 soccer events, got %d", m.report.Summary.Events)
	}
	press(t, m, key("s"), key("a"), tea.KeyMsg{Type: tea.KeyEnter})
	if m.Spec().Sports != nil || m.report.Summary.Events != 5 {
		t.Fatalf("expected cleared sports, got %v (%d events)", m.Spec().Sports, m.report.Summary.Events)
	}
}

func TestUpstreamChangePrunesSelections(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("s"), key("j"), key("j"), tea.KeyMsg{Type: tea.KeySpace}, tea.KeyMsg{Type: tea.KeyEnter})
	if !reflect.DeepEqual(m.Spec().Sports, []string{"Tennis"}) {
		t.Fatalf("unexpected sports: %v", m.Spec().Sports)
	}
	press(t, m, key("c"), tea.KeyMsg{Type: tea.KeySpace}, tea.KeyMsg{Type: tea.KeyEnter})
	if !reflect.DeepEqual(m.Spec().Countries, []string{"USA"}) {
		t.Fatalf("unexpected countries: %v", m.Spec().Countries)
	}
	if len(m.Spec().Sports) != 0 {
		t.Fatalf("expected stale sport to be pruned, got %v", m.Spec().Sports)
	}
	if m.report.Summary.Events != 2 {
		t.Fatalf("expected 2 events, got %d", m.report.Summary.Events)
	}
	if !reflect.DeepEqual(m.domains.Sports, []string{"Swimming", "Soccer"}) {
		t.Fatalf("unexpected sport domain: %v", m.domains.Sports)
	}
}

func TestDateFormAppliesRange(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("/"))
	if !m.dateMode {
		t.Fatalf("expected date form")
	}
	if got := m.dateInputs[0].Value(); got != "2024-06-07" {
		t.Fatalf("form should start from the active range, got %q", got)
	}
	m.dateInputs[0].SetValue("2024-06-08")
	m.dateInputs[1].SetValue("2024-06-09")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.dateMode {
		t.Fatalf("expected form to close")
	}
	if m.report.Summary.Events != 2 {
		t.Fatalf("expected 2 events, got %d", m.report.Summary.Events)
	}
}

func TestDateFormRejectsInvalidDate(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("/"))
	m.dateInputs[0].SetValue("junk")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.dateMode || m.dateError == "" {
		t.Fatalf("expected form to stay open with an error")
	}
	if m.report.Summary.Events != 5 {
		t.Fatalf("filters must be unchanged")
	}
}

func TestDateFormInvertedRangeIsEmpty(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, key("/"))
	m.dateInputs[0].SetValue("2024-06-10")
	m.dateInputs[1].SetValue("2024-06-07")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.report.Summary.Events != 0 {
		t.Fatalf("expected empty selection, got %d", m.report.Summary.Events)
	}
	if !strings.Contains(m.status, "after end date") {
		t.Fatalf("expected inverted range notice, got %q", m.status)
	}
}

func TestDateFormInvertedRangeKeepsSelections(t *testing.T) {
	m := NewModel(sampleDataset(), Options{Filter: model.FilterSpec{Countries: []string{"USA"}}})
	press(t, m, key("/"))
	m.dateInputs[0].SetValue("2024-06-08")
	m.dateInputs[1].SetValue("2024-06-07")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.report.Summary.Events != 0 {
		t.Fatalf("expected empty selection, got %d", m.report.Summary.Events)
	}
	if got := m.Spec().Countries; len(got) != 1 || got[0] != "USA" {
		t.Fatalf("inverted range dropped countries: %v", got)
	}

	press(t, m, key("/"))
	m.dateInputs[0].SetValue("2024-06-07")
	m.dateInputs[1].SetValue("2024-06-08")
	press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if got := m.Spec().Countries; len(got) != 1 || got[0] != "USA" {
		t.Fatalf("expected countries [USA] after fixing range, got %v", got)
	}
	if m.report.Summary.Events != 2 {
		t.Fatalf("expected 2 USA events, got %d", m.report.Summary.Events)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	m := NewModel(sampleDataset(), Options{Filter: model.FilterSpec{Countries: []string{"Chile"}}})
	press(t, m, key("r"))
	if len(m.Spec().Countries) != 0 || m.report.Summary.Events != 5 {
		t.Fatalf("expected reset filters, got %+v", m.Spec())
	}
}

func TestExportWritesFilesAndRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	m := NewModel(sampleDataset(), Options{
		Filter:    model.FilterSpec{Countries: []string{"USA"}},
		ExportDir: dir,
		Recorder:  rec,
	})
	_, cmd := m.Update(key("x"))
	if cmd == nil {
		t.Fatalf("expected export command")
	}
	press(t, m, cmd())
	if m.errMsg != "" {
		t.Fatalf("unexpected error: %s", m.errMsg)
	}
	if !strings.Contains(m.status, "Exported 6 files") {
		t.Fatalf("unexpected status: %q", m.status)
	}
	if len(rec.records) != 6 {
		t.Fatalf("expected 6 history records, got %d", len(rec.records))
	}
	runID := rec.records[0].RunID
	for _, r := range rec.records {
		if r.RunID != runID || !strings.Contains(r.Filter, "USA") {
			t.Fatalf("unexpected record: %+v", r)
		}
	}
	data, err := os.ReadFile(filepath.Join(dir, "OlympicData.csv"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
}

func TestViewRendersTabsAndSummaryTable(t *testing.T) {
	m := NewModel(sampleDataset(), Options{})
	press(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()
	for _, want := range []string{"Overview", "Summary Table", "Views Per Sport", "countries=all"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view", want)
		}
	}
	press(t, m, key("l"), key("l"), key("l"))
	if m.activeTab != tabSummary {
		t.Fatalf("expected summary tab, got %d", m.activeTab)
	}
	view = m.View()
	if !strings.Contains(view, "Brazil") || !strings.Contains(view, "2024-06-07 09:00:00") {
		t.Fatalf("expected summary rows in view:\n%s", view)
	}
	if n := len(m.summaryTable.Rows()); n != 5 {
		t.Fatalf("expected 5 table rows, got %d", n)
	}
}

func TestEmptyDatasetRenders(t *testing.T) {
	m := NewModel(model.NewDataset(nil), Options{})
	press(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	if m.Spec().DateRange != nil {
		t.Fatalf("empty dataset has no default range")
	}
	if !strings.Contains(m.View(), "No events match") {
		t.Fatalf("expected empty notice")
	}
}
