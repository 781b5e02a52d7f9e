package schedule_test

import (
	"testing"
	"time"

	"github.com/himeno-lab/kotori/pkg/service/schedule"
	"github.com/m-mizutani/gt"
)

func TestActivityAt(t *testing.T) {
	table := []byte(`
[monday]
"06:00-08:59" = "Morning run along the Kamo river"
"09:00-17:59" = "Working on illustrations at the studio"
"18:00-22:59" = "Dinner and reading at home"
"23:00-05:59" = "Sleeping"
`)

	p, err := schedule.New(table)
	gt.NoError(t, err).Required()

	t.Run("matches plain ranges", func(t *testing.T) {
		activity, ok := p.ActivityAt(time.Monday, 10, 30)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Working on illustrations at the studio")
	})

	t.Run("range boundaries are inclusive", func(t *testing.T) {
		activity, ok := p.ActivityAt(time.Monday, 9, 0)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Working on illustrations at the studio")

		activity, ok = p.ActivityAt(time.Monday, 17, 59)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Working on illustrations at the studio")
	})

	t.Run("wrap range matches before midnight", func(t *testing.T) {
		activity, ok := p.ActivityAt(time.Monday, 23, 30)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Sleeping")
	})

	t.Run("wrap range matches after midnight", func(t *testing.T) {
		activity, ok := p.ActivityAt(time.Monday, 3, 0)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Sleeping")
	})

	t.Run("wrap range boundaries are inclusive", func(t *testing.T) {
		activity, ok := p.ActivityAt(time.Monday, 23, 0)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Sleeping")

		activity, ok = p.ActivityAt(time.Monday, 5, 59)
		gt.Bool(t, ok).True()
		gt.Value(t, activity).Equal("Sleeping")
	})

	t.Run("no match on a day without entries", func(t *testing.T) {
		_, ok := p.ActivityAt(time.Tuesday, 12, 0)
		gt.Bool(t, ok).False()
	})
}

func TestCurrentActivity(t *testing.T) {
	table := []byte(`
[wednesday]
"00:00-11:59" = "Shift at the coffee stand"
"12:00-23:59" = "Sketching at the park"
`)

	// 2025-06-18 is a Wednesday
	clock := func() time.Time {
		return time.Date(2025, 6, 18, 14, 15, 0, 0, time.UTC)
	}

	p, err := schedule.New(table, schedule.WithClock(clock))
	gt.NoError(t, err).Required()

	activity, ok := p.CurrentActivity()
	gt.Bool(t, ok).True()
	gt.Value(t, activity).Equal("Sketching at the park")
}

func TestNewDefault(t *testing.T) {
	p, err := schedule.NewDefault()
	gt.NoError(t, err).Required()

	// The built-in schedule must cover every minute of the week.
	for day := time.Sunday; day <= time.Saturday; day++ {
		for hour := 0; hour < 24; hour++ {
			activity, ok := p.ActivityAt(day, hour, 30)
			gt.Bool(t, ok).True()
			gt.String(t, activity).NotEqual("")
		}
	}
}

func TestNewRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"malformed range": `
[monday]
"9am-5pm" = "Working"
`,
		"hour out of bounds": `
[monday]
"09:00-24:00" = "Working"
`,
		"empty activity": `
[monday]
"09:00-17:00" = ""
`,
	}

	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := schedule.New([]byte(table))
			gt.Error(t, err)
		})
	}
}
