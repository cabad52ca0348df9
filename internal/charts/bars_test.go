package charts

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderBarsScalesToLargest(t *testing.T) {
	var buf bytes.Buffer
	bars := []Bar{{Label: "Swimming", Value: 30}, {Label: "Soccer", Value: 60}}
	if err := RenderBars(&buf, "Views Per Sport", bars, 40, false); err != nil {
		t.Fatalf("RenderBars failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	swim := strings.Count(lines[1], "█")
	soccer := strings.Count(lines[2], "█")
	if soccer != 2*swim || soccer == 0 {
		t.Fatalf("expected soccer bar twice the swimming bar, got %d and %d", soccer, swim)
	}
	if !strings.HasPrefix(lines[1], "Swimming │") || !strings.HasSuffix(lines[2], "60") {
		t.Fatalf("unexpected bar lines: %q", lines)
	}
}

func TestRenderSharesPercentages(t *testing.T) {
	var buf bytes.Buffer
	bars := []Bar{{Label: "USA", Value: 75}, {Label: "Chile", Value: 25}}
	if err := RenderShares(&buf, "", bars, 22, false); err != nil {
		t.Fatalf("RenderShares failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if strings.Count(lines[0], "█") != 15 || strings.Count(lines[0], "▓") != 5 {
		t.Fatalf("unexpected strip %q", lines[0])
	}
	if !strings.Contains(lines[1], "75.0%") || !strings.Contains(lines[2], "25.0%") {
		t.Fatalf("unexpected legend: %q", lines[1:])
	}
}

func TestRenderSharesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderShares(&buf, "Views Per Device", nil, 40, false); err != nil {
		t.Fatalf("RenderShares failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No data.") {
		t.Fatalf("expected empty notice, got %q", buf.String())
	}
}

func TestAllocateFillsWidth(t *testing.T) {
	spans := allocate([]Bar{{Value: 1}, {Value: 1}, {Value: 1}}, 3, 10)
	total := 0
	for _, s := range spans {
		total += s
	}
	if total != 10 {
		t.Fatalf("expected spans to fill 10 cells, got %v", spans)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		0:       "0",
		30:      "30",
		1234:    "1,234",
		1234567: "1,234,567",
		45.5:    "45.5",
		-2500:   "-2,500",
		9.96:    "10",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v): expected %q, got %q", in, want, got)
		}
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 7}); got != "▁█" {
		t.Fatalf("unexpected sparkline %q", got)
	}
	if got := Sparkline([]float64{3, 3}); got != "▅▅" {
		t.Fatalf("unexpected flat sparkline %q", got)
	}
}
