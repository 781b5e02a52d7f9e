package schedule

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

//go:embed schedule.toml
var defaultScheduleTOML []byte

// timeRange is a half-open range of minutes within a day. Ranges with
// start > end wrap across midnight.
type timeRange struct {
	start int // minutes since 00:00
	end   int
}

func (r timeRange) contains(minute int) bool {
	if r.start > r.end {
		return minute >= r.start || minute <= r.end
	}
	return minute >= r.start && minute <= r.end
}

type slot struct {
	rng      timeRange
	activity string
}

// Provider looks up the persona's current activity from a fixed weekly
// table. The table is read-only after construction.
type Provider struct {
	days map[time.Weekday][]slot
	now  func() time.Time
}

// Option is a functional option for Provider configuration
type Option func(*Provider)

// WithClock overrides the time source, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

// tableDoc is the TOML representation of the weekly table: one section
// per day, mapping "HH:MM-HH:MM" ranges to activity descriptions.
type tableDoc struct {
	Monday    map[string]string `toml:"monday"`
	Tuesday   map[string]string `toml:"tuesday"`
	Wednesday map[string]string `toml:"wednesday"`
	Thursday  map[string]string `toml:"thursday"`
	Friday    map[string]string `toml:"friday"`
	Saturday  map[string]string `toml:"saturday"`
	Sunday    map[string]string `toml:"sunday"`
}

// New creates a Provider from TOML table data
func New(data []byte, opts ...Option) (*Provider, error) {
	var doc tableDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse schedule TOML")
	}

	p := &Provider{
		days: make(map[time.Weekday][]slot),
		now:  time.Now,
	}

	for day, table := range map[time.Weekday]map[string]string{
		time.Monday:    doc.Monday,
		time.Tuesday:   doc.Tuesday,
		time.Wednesday: doc.Wednesday,
		time.Thursday:  doc.Thursday,
		time.Friday:    doc.Friday,
		time.Saturday:  doc.Saturday,
		time.Sunday:    doc.Sunday,
	} {
		slots, err := parseDay(table)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid schedule table", goerr.V("day", day.String()))
		}
		p.days[day] = slots
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewDefault creates a Provider from the embedded persona schedule
func NewDefault(opts ...Option) (*Provider, error) {
	return New(defaultScheduleTOML, opts...)
}

func parseDay(table map[string]string) ([]slot, error) {
	slots := make([]slot, 0, len(table))
	seen := make(map[string]bool, len(table))

	for rangeStr, activity := range table {
		if activity == "" {
			return nil, goerr.New("activity text must not be empty", goerr.V("range", rangeStr))
		}
		if seen[rangeStr] {
			return nil, goerr.New("duplicate time range", goerr.V("range", rangeStr))
		}
		seen[rangeStr] = true

		rng, err := parseTimeRange(rangeStr)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot{rng: rng, activity: activity})
	}
	return slots, nil
}

func parseTimeRange(s string) (timeRange, error) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(s, "%02d:%02d-%02d:%02d", &sh, &sm, &eh, &em); err != nil {
		return timeRange{}, goerr.Wrap(err, "time range must be HH:MM-HH:MM", goerr.V("range", s))
	}
	if sh > 23 || sm > 59 || eh > 23 || em > 59 || sh < 0 || sm < 0 || eh < 0 || em < 0 {
		return timeRange{}, goerr.New("time range out of bounds", goerr.V("range", s))
	}
	return timeRange{start: sh*60 + sm, end: eh*60 + em}, nil
}

// CurrentActivity returns the persona's activity right now
func (p *Provider) CurrentActivity() (string, bool) {
	t := p.now()
	return p.ActivityAt(t.Weekday(), t.Hour(), t.Minute())
}

// ActivityAt looks up the activity for the given day and time-of-day.
// The second return value is false only when no range matches, which
// indicates a gap in the table.
func (p *Provider) ActivityAt(day time.Weekday, hour, minute int) (string, bool) {
	m := hour*60 + minute
	for _, s := range p.days[day] {
		if s.rng.contains(m) {
			return s.activity, true
		}
	}
	return "", false
}
