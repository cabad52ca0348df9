package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/streamdash/internal/model"
)

var (
	pickerCursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	pickerMarkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB069"))
)

// picker is a multi-select list over one categorical column.
type picker struct {
	column   model.Column
	options  []string
	selected map[string]bool
	cursor   int
	offset   int
}

func newPicker(column model.Column, options, current []string) *picker {
	p := &picker{
		column:   column,
		options:  append([]string(nil), options...),
		selected: make(map[string]bool, len(current)),
	}
	for _, v := range current {
		p.selected[v] = true
	}
	return p
}

func (p *picker) move(delta int) {
	if len(p.options) == 0 {
		return
	}
	p.cursor += delta
	if p.cursor < 0 {
		p.cursor = len(p.options) - 1
	}
	if p.cursor >= len(p.options) {
		p.cursor = 0
	}
}

func (p *picker) toggle() {
	if len(p.options) == 0 {
		return
	}
	v := p.options[p.cursor]
	if p.selected[v] {
		delete(p.selected, v)
		return
	}
	p.selected[v] = true
}

func (p *picker) clear() {
	p.selected = make(map[string]bool)
}

// values returns the selection in option order. Nil means no restriction.
func (p *picker) values() []string {
	var out []string
	for _, v := range p.options {
		if p.selected[v] {
			out = append(out, v)
		}
	}
	return out
}

// lines renders at most visible options, scrolling to keep the cursor in view.
func (p *picker) lines(visible int) []string {
	if len(p.options) == 0 {
		return []string{"No values available under the current filters."}
	}
	visible = maxInt(1, visible)
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
	end := minInt(len(p.options), p.offset+visible)
	out := make([]string, 0, end-p.offset)
	for i := p.offset; i < end; i++ {
		v := p.options[i]
		mark := "[ ]"
		if p.selected[v] {
			mark = pickerMarkStyle.Render("[x]")
		}
		prefix := "  "
		if i == p.cursor {
			prefix = pickerCursorStyle.Render("> ")
		}
		out = append(out, prefix+mark+" "+v)
	}
	return out
}

func (m *Model) openPicker(column model.Column) {
	var options, current []string
	switch column {
	case model.ColCountry:
		options, current = m.domains.Countries, m.spec.Countries
	case model.ColSport:
		options, current = m.domains.Sports, m.spec.Sports
	case model.ColDevice:
		options, current = m.domains.Devices, m.spec.Devices
	default:
		return
	}
	m.picker = newPicker(column, options, current)
}

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker
	switch msg.Type {
	case tea.KeyEsc:
		m.picker = nil
		return m, nil
	case tea.KeyEnter:
		m.applyPicker()
		return m, nil
	case tea.KeySpace:
		p.toggle()
		return m, nil
	case tea.KeyUp:
		p.move(-1)
		return m, nil
	case tea.KeyDown:
		p.move(1)
		return m, nil
	}
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "k":
		p.move(-1)
	case "j":
		p.move(1)
	case "a":
		p.clear()
	}
	return m, nil
}

func (m *Model) applyPicker() {
	p := m.picker
	m.picker = nil
	spec := m.spec
	switch p.column {
	case model.ColCountry:
		spec.Countries = p.values()
	case model.ColSport:
		spec.Sports = p.values()
	case model.ColDevice:
		spec.Devices = p.values()
	}
	m.status = ""
	m.applySpec(spec)
	m.updateLayout()
}

func (m *Model) renderPickerModal() string {
	p := m.picker
	title := cardValueStyle.Render(fmt.Sprintf("Select %s", p.column))
	visible := maxInt(3, m.height-12)
	body := []string{title, ""}
	body = append(body, p.lines(visible)...)
	body = append(body,
		"",
		headerStyle.Render(fmt.Sprintf("%d of %d selected (none selected means all)", len(p.values()), len(p.options))),
		headerStyle.Render("space: toggle  a: clear  enter: apply  esc: cancel"),
	)
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
