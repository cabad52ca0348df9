// Package charts renders viewership aggregates as terminal charts and tables.
package charts

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

// Point is one labelled value of a line chart.
type Point struct {
	Label string
	Value float64
}

// PlotOptions controls chart size and styling. Zero values pick defaults.
type PlotOptions struct {
	Width  int
	Height int
	Color  bool
}

const (
	defaultPlotHeight   = 10
	minPlotWidth        = 10
	axisSeparator       = " ┤"
	terminalWidthBackup = 80
	colorReset          = "\x1b[0m"
)

var palette = []string{
	"\x1b[36m",
	"\x1b[35m",
	"\x1b[33m",
	"\x1b[32m",
	"\x1b[34m",
	"\x1b[31m",
	"\x1b[96m",
}

// PlotLine renders points as a braille line chart with a value axis and date labels.
func PlotLine(w io.Writer, title string, points []Point, opts PlotOptions) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "No data.")
		return err
	}

	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	lo, hi := valueBounds(values)
	labels := axisLabels(lo, hi, height)
	axisWidth := 0
	for _, l := range labels {
		if lw := runewidth.StringWidth(l); lw > axisWidth {
			axisWidth = lw
		}
	}
	width := opts.Width
	if width <= 0 {
		width = PlotWidthFor(TerminalWidth(), axisWidth)
	}
	if width < minPlotWidth {
		width = minPlotWidth
	}

	cells := makeCells(height, width)
	dots := resample(values, width*2)
	prevX, prevY := -1, -1
	for x, v := range dots {
		y := dotRow(v, lo, hi, height*4)
		if prevX >= 0 {
			drawLine(prevX, prevY, x, y, func(px, py int) {
				setDot(cells, px, py)
			})
		} else {
			setDot(cells, x, y)
		}
		prevX, prevY = x, y
	}

	for row := 0; row < height; row++ {
		var b strings.Builder
		b.WriteString(runewidth.FillLeft(labels[row], axisWidth))
		b.WriteString(axisSeparator)
		if opts.Color {
			b.WriteString(palette[0])
		}
		for x := 0; x < width; x++ {
			b.WriteRune(brailleRune(cells[row][x]))
		}
		if opts.Color {
			b.WriteString(colorReset)
		}
		if _, err := fmt.Fprintln(w, b.String()); err != nil {
			return err
		}
	}
	indent := strings.Repeat(" ", axisWidth+runewidth.StringWidth(axisSeparator))
	if _, err := fmt.Fprintln(w, indent+xLabels(points, width)); err != nil {
		return err
	}
	return nil
}

// PlotWidthFor computes the plot area width that fits within totalWidth next to an axis of axisWidth cells.
func PlotWidthFor(totalWidth, axisWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	plotWidth := totalWidth - axisWidth - runewidth.StringWidth(axisSeparator)
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	return plotWidth
}

// TerminalWidth returns the width of stdout or a fallback when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether ANSI colors suit w. NO_COLOR always wins.
func ShouldUseColor(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func valueBounds(values []float64) (float64, float64) {
	lo, hi := 0.0, math.Inf(-1)
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if math.IsInf(hi, -1) || hi-lo < 1e-9 {
		hi = lo + 1
	}
	return lo, hi
}

func axisLabels(lo, hi float64, height int) []string {
	labels := make([]string, height)
	labels[0] = FormatNumber(hi)
	if height > 2 {
		labels[height/2] = FormatNumber(lo + (hi-lo)/2)
	}
	if height > 1 {
		labels[height-1] = FormatNumber(lo)
	}
	return labels
}

func xLabels(points []Point, width int) string {
	first := points[0].Label
	if len(points) == 1 {
		return runewidth.Truncate(first, width, "")
	}
	last := points[len(points)-1].Label
	gap := width - runewidth.StringWidth(first) - runewidth.StringWidth(last)
	if gap < 1 {
		return runewidth.Truncate(first, width, "")
	}
	return first + strings.Repeat(" ", gap) + last
}

func makeCells(height, width int) [][]uint8 {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return cells
}

// resample stretches or averages values onto n evenly spaced samples.
func resample(values []float64, n int) []float64 {
	if len(values) == 0 || n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if len(values) == 1 || n == 1 {
		for i := range out {
			out[i] = values[0]
		}
		return out
	}
	if len(values) > n {
		for i := 0; i < n; i++ {
			start := i * len(values) / n
			end := (i + 1) * len(values) / n
			if end <= start {
				end = start + 1
			}
			var sum float64
			for _, v := range values[start:end] {
				sum += v
			}
			out[i] = sum / float64(end-start)
		}
		return out
	}
	for i := 0; i < n; i++ {
		pos := float64(i) * float64(len(values)-1) / float64(n-1)
		idx := int(pos)
		if idx >= len(values)-1 {
			out[i] = values[len(values)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = values[idx]*(1-frac) + values[idx+1]*frac
	}
	return out
}

func dotRow(v, lo, hi float64, rows int) int {
	if rows <= 1 {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	row := int(math.Round((1 - pos) * float64(rows-1)))
	if row < 0 {
		return 0
	}
	if row >= rows {
		return rows - 1
	}
	return row
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// Braille cells are two dots wide and four dots tall.
var dotMasks = [2][4]uint8{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

func setDot(cells [][]uint8, x, y int) {
	if x < 0 || y < 0 {
		return
	}
	row, col := y/4, x/2
	if row >= len(cells) || col >= len(cells[row]) {
		return
	}
	cells[row][col] |= dotMasks[x%2][y%4]
}

func brailleRune(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
