// Package dashboard provides the Bubble Tea viewership dashboard.
package dashboard

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/streamdash/internal/charts"
	"github.com/verte-zerg/streamdash/internal/config"
	"github.com/verte-zerg/streamdash/internal/export"
	"github.com/verte-zerg/streamdash/internal/logging"
	"github.com/verte-zerg/streamdash/internal/model"
	"github.com/verte-zerg/streamdash/internal/query"
	"github.com/verte-zerg/streamdash/internal/store"
)

const (
	tabOverview = iota
	tabTimeSeries
	tabBreakdown
	tabSummary
)

const (
	plotHeight = 10
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB069"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Recorder stores export history.
type Recorder interface {
	RecordExports(ctx context.Context, records []model.ExportRecord) error
}

// Options configures the dashboard.
type Options struct {
	Filter    model.FilterSpec
	ExportDir string
	Recorder  Recorder
}

// Model implements the Bubble Tea dashboard.
type Model struct {
	dataset model.Dataset
	opts    Options
	log     zerolog.Logger

	spec    model.FilterSpec
	domains query.Domains
	report  charts.Report
	errMsg  string
	status  string

	tabs         []string
	activeTab    int
	viewports    []viewport.Model
	summaryTable table.Model
	tableLayout  tableLayout

	width  int
	height int

	dateMode   bool
	dateInputs []textinput.Model
	dateIndex  int
	dateError  string

	picker *picker
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
}

type exportedMsg struct {
	dir   string
	files []export.File
	err   error
}

// NewModel constructs a dashboard over ds. Without a date range in opts the
// full span of the dataset is selected.
func NewModel(ds model.Dataset, opts Options) *Model {
	m := &Model{
		dataset: ds,
		opts:    opts,
		log:     logging.With("dashboard"),
		tabs:    []string{"Overview", "Time Series", "Channels & Devices", "Summary Table"},
	}
	spec := opts.Filter
	if spec.DateRange == nil {
		spec.DateRange = m.defaultRange()
	}
	m.initInputs()
	m.initSummaryTable()
	m.initViewports()
	m.applySpec(spec)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Spec returns the active, pruned filter selection.
func (m *Model) Spec() model.FilterSpec {
	return m.spec
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case exportedMsg:
		m.finishExport(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.dateMode {
			return m.updateDateForm(msg)
		}
		if m.picker != nil {
			return m.updatePicker(msg)
		}
		if m.activeTab == tabSummary {
			m.summaryTable.Focus()
		} else {
			m.summaryTable.Blur()
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startDateForm()
		case "c":
			m.openPicker(model.ColCountry)
			return m, nil
		case "s":
			m.openPicker(model.ColSport)
			return m, nil
		case "d":
			m.openPicker(model.ColDevice)
			return m, nil
		case "x":
			m.status = "Exporting..."
			return m, m.exportCmd()
		case "r":
			m.status = "Filters reset."
			m.applySpec(model.FilterSpec{DateRange: m.defaultRange()})
			m.updateLayout()
			return m, nil
		case "g", "home":
			if m.activeTab == tabSummary {
				m.summaryTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabSummary {
				m.summaryTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabSummary {
				var cmd tea.Cmd
				m.summaryTable, cmd = m.summaryTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.picker != nil {
		return fitLines(m.renderPickerModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) defaultRange() *model.DateRange {
	lo, hi, ok := m.dataset.DateBounds()
	if !ok {
		return nil
	}
	return &model.DateRange{Start: lo, End: hi}
}

// applySpec prunes spec against the cascaded picker domains and rebuilds every view.
func (m *Model) applySpec(spec model.FilterSpec) {
	resolved, domains, err := query.Resolve(m.dataset, spec)
	if err == nil {
		var report charts.Report
		report, err = charts.BuildReport(m.dataset, resolved)
		if err == nil {
			m.spec = resolved
			m.domains = domains
			m.report = report
		}
	}
	if err != nil {
		m.errMsg = err.Error()
		m.log.Error().Err(err).Msg("failed to apply filters")
		m.renderTabContents()
		return
	}
	m.errMsg = ""
	m.log.Debug().
		Int("events", m.report.Summary.Events).
		Strs("countries", m.spec.Countries).
		Strs("sports", m.spec.Sports).
		Strs("devices", m.spec.Devices).
		Msg("filters applied")
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.applySummaryTable(width, bodyHeight, true)
	m.renderTabContents()
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.dateInputs = []textinput.Model{
		newFilterInput("Start (YYYY-MM-DD): "),
		newFilterInput("End (YYYY-MM-DD): "),
	}
	m.setInputsFromSpec()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = len(model.DateLayout)
	input.Placeholder = model.DateLayout
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromSpec() {
	if len(m.dateInputs) < 2 {
		return
	}
	if r := m.spec.DateRange; r != nil {
		m.dateInputs[0].SetValue(r.Start.Format(model.DateLayout))
		m.dateInputs[1].SetValue(r.End.Format(model.DateLayout))
		return
	}
	m.dateInputs[0].SetValue("")
	m.dateInputs[1].SetValue("")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.dateMode && (m.errMsg != "" || m.status != "") {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.setSummaryTableSize(m.width, vpHeight)
	for i := range m.dateInputs {
		promptWidth := lipgloss.Width(m.dateInputs[i].Prompt)
		m.dateInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabSummary {
		m.summaryTable.Focus()
	} else {
		m.summaryTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	dates := "all"
	if r := m.spec.DateRange; r != nil {
		dates = r.Start.Format(model.DateLayout) + ".." + r.End.Format(model.DateLayout)
	}
	summary := fmt.Sprintf("Filters: dates=%s  countries=%s  sports=%s  devices=%s",
		dates, selectionLabel(m.spec.Countries), selectionLabel(m.spec.Sports), selectionLabel(m.spec.Devices))
	summary = truncateLine(summary, m.width)
	return headerStyle.Render(summary)
}

func selectionLabel(values []string) string {
	if len(values) == 0 {
		return "all"
	}
	return strings.Join(values, ",")
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Dates: /  Country: c  Sport: s  Device: d  Export: x  Reset: r  Quit: q"
	if m.activeTab == tabSummary {
		help = "Nav: left/right  Rows: up/down  Dates: /  Country: c  Sport: s  Device: d  Export: x  Reset: r  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.dateMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	switch {
	case m.errMsg != "":
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	case m.status != "":
		return m.renderHelp() + "\n" + statusStyle.Render(m.status)
	}
	return m.renderHelp()
}

func (m *Model) renderBody(height int) string {
	if m.dateMode {
		return fitLines(m.renderDateForm(), m.width, height)
	}
	if m.activeTab == tabSummary {
		if m.report.Summary.Events == 0 {
			return fitLines("No events match the current filters.", m.width, height)
		}
		view := tableMutedStyle.Render(m.summaryTable.View())
		return fitLines(view, m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to compute charts.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, width))
	m.viewports[tabTimeSeries].SetContent(renderTimeSeries(m.report, width))
	m.viewports[tabBreakdown].SetContent(renderBreakdown(m.report, width))
}

func renderOverview(r charts.Report, width int) string {
	if r.Summary.Events == 0 {
		return "No events match the current filters."
	}
	cards := renderSummaryCards(r, width)
	var buf bytes.Buffer
	if err := charts.RenderBars(&buf, "Views Per Sport", charts.BarsFromAggregate(r.BySport), width, true); err != nil {
		return fmt.Sprintf("Failed to render sports: %v", err)
	}
	buf.WriteString("\n")
	if err := charts.RenderShares(&buf, "Views Per Country", charts.BarsFromAggregate(r.ByCountry), width, true); err != nil {
		return fmt.Sprintf("Failed to render countries: %v", err)
	}
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(r charts.Report, width int) string {
	s := r.Summary
	cards := []string{
		metricCard("Events", fmt.Sprintf("%d", s.Events)),
		metricCard("Minutes viewed", charts.FormatNumber(s.Minutes)),
		metricCard("Viewers", fmt.Sprintf("%d", s.Users)),
		metricCard("Countries", fmt.Sprintf("%d", s.Countries)),
		metricCard("Daily trend", charts.Sparkline(r.TimelineValues())),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderTimeSeries(r charts.Report, width int) string {
	if r.Summary.Events == 0 {
		return "No events match the current filters."
	}
	var buf bytes.Buffer
	if err := charts.RenderTimeline(&buf, "Time Series Analysis", r.Timeline, width, charts.PlotOptions{Height: plotHeight, Color: true}); err != nil {
		return fmt.Sprintf("Failed to render time series: %v", err)
	}
	rows := make([][]string, 0, len(r.Timeline.Entries))
	for _, e := range r.Timeline.Entries {
		rows = append(rows, []string{e.Key, charts.FormatNumber(e.Total)})
	}
	lines := charts.FormatTable([]string{"Date", "Minutes"}, rows, map[int]bool{1: true})
	return strings.TrimRight(buf.String()+"\n"+strings.Join(lines, "\n"), "\n")
}

func renderBreakdown(r charts.Report, width int) string {
	if r.Summary.Events == 0 {
		return "No events match the current filters."
	}
	var buf bytes.Buffer
	if err := charts.RenderShares(&buf, "Views Per Channel", charts.BarsFromAggregate(r.ByChannel), width, true); err != nil {
		return fmt.Sprintf("Failed to render channels: %v", err)
	}
	buf.WriteString("\n")
	if err := charts.RenderShares(&buf, "Views Per Device", charts.BarsFromAggregate(r.ByDevice), width, true); err != nil {
		return fmt.Sprintf("Failed to render devices: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (m *Model) startDateForm() (tea.Model, tea.Cmd) {
	m.dateMode = true
	m.dateError = ""
	m.setInputsFromSpec()
	return m, m.setDateIndex(0)
}

func (m *Model) updateDateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.dateMode = false
		m.dateError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyDateForm(); err != nil {
			m.dateError = err.Error()
			return m, nil
		}
		m.dateMode = false
		m.dateError = ""
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setDateIndex(m.dateIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setDateIndex(m.dateIndex - 1)
	}
	var cmd tea.Cmd
	m.dateInputs[m.dateIndex], cmd = m.dateInputs[m.dateIndex].Update(msg)
	return m, cmd
}

func (m *Model) setDateIndex(idx int) tea.Cmd {
	count := len(m.dateInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.dateIndex = idx
	var cmd tea.Cmd
	for i := range m.dateInputs {
		if i == m.dateIndex {
			cmd = m.dateInputs[i].Focus()
		} else {
			m.dateInputs[i].Blur()
		}
	}
	return cmd
}

// applyDateForm parses the form. Blank bounds fall back to the dataset span.
func (m *Model) applyDateForm() error {
	lo, hi, _ := m.dataset.DateBounds()
	r, err := config.ParseDateRange(m.dateInputs[0].Value(), m.dateInputs[1].Value(), lo, hi)
	if err != nil {
		return err
	}
	if r == nil {
		r = m.defaultRange()
	}
	spec := m.spec
	spec.DateRange = r
	m.status = ""
	if r != nil && r.Inverted() {
		m.status = "Start date is after end date."
	}
	m.applySpec(spec)
	return nil
}

func (m *Model) renderDateForm() string {
	lines := []string{"Date range (enter to apply, esc to cancel)"}
	for _, input := range m.dateInputs {
		lines = append(lines, input.View())
	}
	if m.dateError != "" {
		lines = append(lines, errorStyle.Render(m.dateError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) exportCmd() tea.Cmd {
	ds := m.report.Dataset
	spec := m.spec
	dir := m.opts.ExportDir
	recorder := m.opts.Recorder
	return func() tea.Msg {
		files, err := export.Bundle(dir, ds)
		if err != nil {
			return exportedMsg{dir: dir, files: files, err: err}
		}
		if recorder != nil {
			filter, ferr := store.EncodeFilter(spec)
			if ferr != nil {
				return exportedMsg{dir: dir, files: files, err: ferr}
			}
			records := export.Records(store.NewRunID(), filter, files, time.Now())
			if rerr := recorder.RecordExports(context.Background(), records); rerr != nil {
				return exportedMsg{dir: dir, files: files, err: fmt.Errorf("failed to record exports: %w", rerr)}
			}
		}
		return exportedMsg{dir: dir, files: files}
	}
}

func (m *Model) finishExport(msg exportedMsg) {
	if msg.err != nil {
		m.status = ""
		m.errMsg = msg.err.Error()
		m.log.Error().Err(msg.err).Str("dir", msg.dir).Msg("export failed")
		return
	}
	m.errMsg = ""
	m.status = fmt.Sprintf("Exported %d files to %s", len(msg.files), msg.dir)
	m.log.Info().Int("files", len(msg.files)).Str("dir", msg.dir).Msg("export finished")
}

func (m *Model) initSummaryTable() {
	m.summaryTable = table.New(
		table.WithColumns(summaryColumns(nil)),
		table.WithHeight(1),
	)
	m.summaryTable.SetStyles(summaryTableStyles())
}

func summaryColumns(rows [][]string) []table.Column {
	cols := make([]table.Column, len(charts.SummaryColumns))
	for i, c := range charts.SummaryColumns {
		width := lipgloss.Width(string(c))
		for _, row := range rows {
			width = maxInt(width, lipgloss.Width(row[i]))
		}
		cols[i] = table.Column{Title: string(c), Width: width}
	}
	return cols
}

func (m *Model) applySummaryTable(width, height int, force bool) {
	data := charts.SummaryRows(m.report.Dataset, charts.SummaryRowLimit)
	rows := make([]table.Row, len(data))
	for i, r := range data {
		rows[i] = table.Row(r)
	}
	if !force && m.tableLayout.rowCount == len(rows) {
		return
	}
	m.summaryTable.SetColumns(summaryColumns(data))
	m.summaryTable.SetRows(rows)
	m.summaryTable.GotoTop()
	m.tableLayout.rowCount = len(rows)
	m.tableLayout.width = 0
	m.setSummaryTableSize(width, height)
}

func (m *Model) setSummaryTableSize(width, height int) {
	viewportHeight := maxInt(1, height-1)
	if m.tableLayout.width == width && m.tableLayout.height == viewportHeight {
		return
	}
	m.tableLayout.width = width
	m.tableLayout.height = viewportHeight
	m.summaryTable.SetWidth(width)
	m.summaryTable.SetHeight(viewportHeight)
	viewportHeight = m.adjustSummaryTableHeight(height)
	if m.tableLayout.height != viewportHeight {
		m.tableLayout.height = viewportHeight
		m.summaryTable.SetHeight(viewportHeight)
	}
}

func (m *Model) adjustSummaryTableHeight(bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := m.summaryTable.Height()
	viewHeight := lipgloss.Height(m.summaryTable.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	m.summaryTable.SetHeight(height)
	viewHeight = lipgloss.Height(m.summaryTable.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	return height
}

func summaryTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}
