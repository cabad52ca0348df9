package charts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

func TestPlotLine(t *testing.T) {
	var buf bytes.Buffer
	points := []Point{
		{Label: "2024-06-07", Value: 120},
		{Label: "2024-06-08", Value: 300},
		{Label: "2024-06-09", Value: 90},
		{Label: "2024-06-10", Value: 240},
	}
	if err := PlotLine(&buf, "Time Series", points, PlotOptions{Width: 30, Height: 4}); err != nil {
		t.Fatalf("PlotLine failed: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 1+4+1 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "Time Series" {
		t.Fatalf("expected title, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "300 ┤") || !strings.HasPrefix(lines[4], "  0 ┤") {
		t.Fatalf("unexpected axis labels:\n%s", out)
	}
	last := lines[len(lines)-1]
	if !strings.Contains(last, "2024-06-07") || !strings.HasSuffix(last, "2024-06-10") {
		t.Fatalf("expected first and last date labels, got %q", last)
	}
	for _, line := range lines[1:5] {
		if got := runewidth.StringWidth(line); got != 5+30 {
			t.Fatalf("expected plot rows of width 35, got %d: %q", got, line)
		}
	}
}

func TestPlotLineEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotLine(&buf, "", nil, PlotOptions{}); err != nil {
		t.Fatalf("PlotLine failed: %v", err)
	}
	if buf.String() != "No data.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80, 5); got != 80-5-2 {
		t.Fatalf("expected width 73, got %d", got)
	}
	if got := PlotWidthFor(0, 5); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}

func TestResampleKeepsEndpoints(t *testing.T) {
	out := resample([]float64{1, 5}, 5)
	if len(out) != 5 || out[0] != 1 || out[4] != 5 || out[2] != 3 {
		t.Fatalf("unexpected resample: %v", out)
	}
	down := resample([]float64{1, 3, 5, 7}, 2)
	if down[0] != 2 || down[1] != 6 {
		t.Fatalf("unexpected downsample: %v", down)
	}
}
