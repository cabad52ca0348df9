// Package generator builds synthetic viewing-event data.
package generator

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/verte-zerg/streamdash/internal/model"
)

// DefaultRows is the number of events produced when no count is configured.
const DefaultRows = 2000

var (
	// DefaultStart and DefaultEnd bound the generated calendar dates.
	DefaultStart = time.Date(2024, time.June, 7, 0, 0, 0, 0, time.UTC)
	DefaultEnd   = time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC)
)

var (
	countries = []string{"USA", "Canada", "Mexico", "Chile", "Brazil", "Namibia", "South Africa"}
	sports    = []string{"Swimming", "Basketball", "Soccer", "Hockey", "Snowboarding", "Tennis"}
	durations = []float64{30, 60, 90, 40, 50, 10, 120, 70, 80}
	devices   = []string{"Desktop", "Mobile", "Tablet"}
	channels  = []string{"Main Channel", "Events Channel 2", "Live Sports"}
)

const (
	minUserID = 10000
	maxUserID = 19999
)

// Generator produces randomized viewing events.
type Generator struct {
	rnd   *rand.Rand
	start time.Time
	end   time.Time
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a Generator with a fixed seed for reproducible output.
func NewSeeded(seed int64) *Generator {
	return &Generator{
		rnd:   rand.New(rand.NewSource(seed)),
		start: DefaultStart,
		end:   DefaultEnd,
	}
}

// WithDates changes the inclusive calendar range timestamps are drawn from.
func (g *Generator) WithDates(start, end time.Time) (*Generator, error) {
	start, end = model.DateOf(start), model.DateOf(end)
	if start.After(end) {
		return nil, fmt.Errorf("start date %s is after end date %s", start.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	g.start = start
	g.end = end
	return g, nil
}

// Generate returns count events drawn uniformly from the fixed value pools.
func (g *Generator) Generate(count int) []model.Event {
	if count <= 0 {
		return nil
	}
	stamps := hourlyTimestamps(g.start, g.end)
	ips := g.randomIPs(count)
	events := make([]model.Event, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, model.Event{
			Timestamp: stamps[g.rnd.Intn(len(stamps))],
			ViewerIP:  ips[g.rnd.Intn(len(ips))],
			UserID:    strconv.Itoa(minUserID + g.rnd.Intn(maxUserID-minUserID+1)),
			Country:   pick(g.rnd, countries),
			Sport:     pick(g.rnd, sports),
			Duration:  durations[g.rnd.Intn(len(durations))],
			Device:    pick(g.rnd, devices),
			Channel:   pick(g.rnd, channels),
		})
	}
	return events
}

func (g *Generator) randomIPs(n int) []string {
	ips := make([]string, n)
	for i := range ips {
		ips[i] = fmt.Sprintf("%d.%d.%d.%d", octet(g.rnd), octet(g.rnd), octet(g.rnd), octet(g.rnd))
	}
	return ips
}

func octet(rnd *rand.Rand) int {
	return 1 + rnd.Intn(254)
}

func hourlyTimestamps(start, end time.Time) []time.Time {
	var stamps []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		for hour := 0; hour < 24; hour++ {
			stamps = append(stamps, day.Add(time.Duration(hour)*time.Hour))
		}
	}
	return stamps
}

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}
