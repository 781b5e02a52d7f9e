package config

import (
	"os"

	"github.com/himeno-lab/kotori/pkg/service/schedule"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Schedule holds CLI flags for the weekly activity schedule
type Schedule struct {
	path string
}

// Flags returns CLI flags for schedule configuration
func (s *Schedule) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "schedule",
			Usage:       "Weekly activity schedule TOML file (empty for the built-in schedule)",
			Sources:     cli.EnvVars("KOTORI_SCHEDULE"),
			Destination: &s.path,
		},
	}
}

// Configure builds the activity provider, from the configured TOML file
// or the embedded default schedule.
func (s *Schedule) Configure() (*schedule.Provider, error) {
	if s.path == "" {
		return schedule.NewDefault()
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read schedule file", goerr.V("path", s.path))
	}

	provider, err := schedule.New(data)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid schedule file", goerr.V("path", s.path))
	}
	return provider, nil
}
