package gamestats

import (
	"errors"
	"math"
	"testing"
)

func validLine() StatLine {
	return StatLine{
		PlayerID:      23,
		TeamID:        14,
		GameID:        1001,
		Points:        27,
		Rebounds:      8,
		Assists:       9,
		Steals:        2,
		Blocks:        1,
		Fouls:         3,
		Turnovers:     4,
		MinutesPlayed: 35.5,
	}
}

func TestStatLineValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*StatLine)
		wantField string
		wantErr   error
	}{
		{name: "valid", mutate: func(*StatLine) {}},
		{name: "boundary fouls and minutes", mutate: func(s *StatLine) { s.Fouls = 6; s.MinutesPlayed = 48 }},
		{name: "zero minutes", mutate: func(s *StatLine) { s.MinutesPlayed = 0 }},
		{name: "missing player", mutate: func(s *StatLine) { s.PlayerID = 0 }, wantField: "player_id", wantErr: ErrInvalidSubjectID},
		{name: "missing team", mutate: func(s *StatLine) { s.TeamID = -1 }, wantField: "team_id", wantErr: ErrInvalidSubjectID},
		{name: "missing game", mutate: func(s *StatLine) { s.GameID = 0 }, wantField: "game_id", wantErr: ErrInvalidSubjectID},
		{name: "negative points", mutate: func(s *StatLine) { s.Points = -1 }, wantField: "points", wantErr: ErrNegativeCounter},
		{name: "negative turnovers", mutate: func(s *StatLine) { s.Turnovers = -2 }, wantField: "turnovers", wantErr: ErrNegativeCounter},
		{name: "seven fouls", mutate: func(s *StatLine) { s.Fouls = 7 }, wantField: "fouls", wantErr: ErrTooManyFouls},
		{name: "minutes over regulation", mutate: func(s *StatLine) { s.MinutesPlayed = 48.5 }, wantField: "minutes_played", wantErr: ErrMinutesOutOfRange},
		{name: "negative minutes", mutate: func(s *StatLine) { s.MinutesPlayed = -0.1 }, wantField: "minutes_played", wantErr: ErrMinutesOutOfRange},
		{name: "nan minutes", mutate: func(s *StatLine) { s.MinutesPlayed = math.NaN() }, wantField: "minutes_played", wantErr: ErrMinutesOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			line := validLine()
			tt.mutate(&line)
			err := line.Validate()

			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected validation error: %v", err)
				}
				return
			}

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T (%v)", err, err)
			}
			if validationErr.Field != tt.wantField {
				t.Fatalf("unexpected field got=%s want=%s", validationErr.Field, tt.wantField)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("unexpected cause got=%v want=%v", err, tt.wantErr)
			}
		})
	}
}

func TestPairValidate(t *testing.T) {
	t.Parallel()

	if err := (Pair{PlayerID: 1, TeamID: 2}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Pair{PlayerID: 0, TeamID: 2}).Validate(); !errors.Is(err, ErrInvalidSubjectID) {
		t.Fatalf("expected invalid subject error, got %v", err)
	}
	if err := (Pair{PlayerID: 1}).Validate(); !errors.Is(err, ErrInvalidSubjectID) {
		t.Fatalf("expected invalid subject error, got %v", err)
	}
}
