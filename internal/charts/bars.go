package charts

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/streamdash/internal/model"
)

// Bar is one labelled value of a bar or share chart.
type Bar struct {
	Label string
	Value float64
}

const maxLabelWidth = 20

var eighths = []rune{' ', '▏', '▎', '▍', '▌', '▋', '▊', '▉', '█'}

var shadeGlyphs = []rune{'█', '▓', '▒', '░', '▚', '▞', '▪'}

// BarsFromAggregate converts aggregate entries to bars, preserving order.
func BarsFromAggregate(r model.AggregateResult) []Bar {
	bars := make([]Bar, len(r.Entries))
	for i, e := range r.Entries {
		bars[i] = Bar{Label: e.Key, Value: e.Total}
	}
	return bars
}

// PointsFromAggregate converts aggregate entries to line chart points, preserving order.
func PointsFromAggregate(r model.AggregateResult) []Point {
	points := make([]Point, len(r.Entries))
	for i, e := range r.Entries {
		points[i] = Point{Label: e.Key, Value: e.Total}
	}
	return points
}

// RenderBars draws a horizontal bar chart scaled to the largest value.
func RenderBars(w io.Writer, title string, bars []Bar, width int, color bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(bars) == 0 {
		_, err := fmt.Fprintln(w, "No data.")
		return err
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	labelWidth, valueWidth := 0, 0
	maxValue := 0.0
	for _, b := range bars {
		labelWidth = max(labelWidth, min(runewidth.StringWidth(b.Label), maxLabelWidth))
		valueWidth = max(valueWidth, len(FormatNumber(b.Value)))
		maxValue = math.Max(maxValue, b.Value)
	}
	barWidth := width - labelWidth - valueWidth - 4
	if barWidth < minPlotWidth {
		barWidth = minPlotWidth
	}
	for i, b := range bars {
		label := runewidth.FillRight(runewidth.Truncate(b.Label, labelWidth, "…"), labelWidth)
		bar := barString(b.Value, maxValue, barWidth)
		if color {
			bar = palette[i%len(palette)] + bar + colorReset
		}
		line := fmt.Sprintf("%s │%s %*s", label, bar, valueWidth, FormatNumber(b.Value))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func barString(value, maxValue float64, width int) string {
	if maxValue <= 0 || value <= 0 {
		return strings.Repeat(" ", width)
	}
	units := int(math.Round(value / maxValue * float64(width*8)))
	full, part := units/8, units%8
	var b strings.Builder
	b.WriteString(strings.Repeat(string(eighths[8]), full))
	cellsUsed := full
	if part > 0 && full < width {
		b.WriteRune(eighths[part])
		cellsUsed++
	}
	b.WriteString(strings.Repeat(" ", width-cellsUsed))
	return b.String()
}

// RenderShares draws each value's share of the total as a stacked strip and a legend.
func RenderShares(w io.Writer, title string, bars []Bar, width int, color bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	total := 0.0
	for _, b := range bars {
		if b.Value > 0 {
			total += b.Value
		}
	}
	if len(bars) == 0 || total <= 0 {
		_, err := fmt.Fprintln(w, "No data.")
		return err
	}
	if width <= 0 {
		width = TerminalWidth()
	}
	stripWidth := max(width-2, minPlotWidth)
	spans := allocate(bars, total, stripWidth)

	var strip strings.Builder
	for i, span := range spans {
		segment := strings.Repeat(string(shareGlyph(i, color)), span)
		if color && span > 0 {
			segment = palette[i%len(palette)] + segment + colorReset
		}
		strip.WriteString(segment)
	}
	if _, err := fmt.Fprintln(w, strip.String()); err != nil {
		return err
	}

	labelWidth := 0
	for _, b := range bars {
		labelWidth = max(labelWidth, min(runewidth.StringWidth(b.Label), maxLabelWidth))
	}
	for i, b := range bars {
		glyph := string(shareGlyph(i, color))
		if color {
			glyph = palette[i%len(palette)] + glyph + colorReset
		}
		label := runewidth.FillRight(runewidth.Truncate(b.Label, labelWidth, "…"), labelWidth)
		pct := 0.0
		if b.Value > 0 {
			pct = b.Value / total * 100
		}
		if _, err := fmt.Fprintf(w, "%s %s %5.1f%%  %s\n", glyph, label, pct, FormatNumber(b.Value)); err != nil {
			return err
		}
	}
	return nil
}

func shareGlyph(i int, color bool) rune {
	if color {
		return '█'
	}
	return shadeGlyphs[i%len(shadeGlyphs)]
}

// allocate splits width cells across bars by share using largest remainders.
func allocate(bars []Bar, total float64, width int) []int {
	spans := make([]int, len(bars))
	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, 0, len(bars))
	used := 0
	for i, b := range bars {
		if b.Value <= 0 {
			continue
		}
		exact := b.Value / total * float64(width)
		spans[i] = int(exact)
		used += spans[i]
		rems = append(rems, remainder{idx: i, frac: exact - float64(spans[i])})
	}
	for used < width && len(rems) > 0 {
		best := 0
		for j := range rems {
			if rems[j].frac > rems[best].frac {
				best = j
			}
		}
		spans[rems[best].idx]++
		rems[best].frac = -1
		used++
	}
	return spans
}

// FormatNumber renders v with thousands separators, keeping one decimal for fractional values.
func FormatNumber(v float64) string {
	v = math.Round(v*10) / 10
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	whole := math.Floor(v)
	tenth := int(math.Round((v - whole) * 10))
	digits := strconv.FormatFloat(whole, 'f', 0, 64)
	var b strings.Builder
	b.WriteString(sign)
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if tenth > 0 {
		b.WriteString("." + strconv.Itoa(tenth))
	}
	return b.String()
}
