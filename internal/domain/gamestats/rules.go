package gamestats

import (
	"errors"
	"fmt"
	"math"
)

const (
	MaxFouls         = 6
	MaxMinutesPlayed = 48.0
)

var (
	ErrInvalidSubjectID  = errors.New("subject id must be positive")
	ErrNegativeCounter   = errors.New("stat counter cannot be negative")
	ErrTooManyFouls      = errors.New("fouls cannot be greater than 6")
	ErrMinutesOutOfRange = errors.New("minutes played must be between 0 and 48")
)

// ValidationError names the first field of a stat line that broke a rule.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (s StatLine) Validate() error {
	ids := []struct {
		field string
		value int64
	}{
		{"player_id", s.PlayerID},
		{"team_id", s.TeamID},
		{"game_id", s.GameID},
	}
	for _, id := range ids {
		if id.value < 1 {
			return &ValidationError{Field: id.field, Err: ErrInvalidSubjectID}
		}
	}

	counters := []struct {
		field string
		value int
	}{
		{"points", s.Points},
		{"rebounds", s.Rebounds},
		{"assists", s.Assists},
		{"steals", s.Steals},
		{"blocks", s.Blocks},
		{"fouls", s.Fouls},
		{"turnovers", s.Turnovers},
	}
	for _, counter := range counters {
		if counter.value < 0 {
			return &ValidationError{Field: counter.field, Err: ErrNegativeCounter}
		}
	}

	if s.Fouls > MaxFouls {
		return &ValidationError{Field: "fouls", Err: ErrTooManyFouls}
	}
	if math.IsNaN(s.MinutesPlayed) || s.MinutesPlayed < 0 || s.MinutesPlayed > MaxMinutesPlayed {
		return &ValidationError{Field: "minutes_played", Err: ErrMinutesOutOfRange}
	}

	return nil
}

func (p Pair) Validate() error {
	if p.PlayerID < 1 {
		return &ValidationError{Field: "player_id", Err: ErrInvalidSubjectID}
	}
	if p.TeamID < 1 {
		return &ValidationError{Field: "team_id", Err: ErrInvalidSubjectID}
	}
	return nil
}
