package gamestats

type SubjectKind string

const (
	SubjectPlayer SubjectKind = "player"
	SubjectTeam   SubjectKind = "team"
)

func (k SubjectKind) Valid() bool {
	return k == SubjectPlayer || k == SubjectTeam
}

// StatLine is one player's box score for one game.
type StatLine struct {
	PlayerID      int64
	TeamID        int64
	GameID        int64
	Points        int
	Rebounds      int
	Assists       int
	Steals        int
	Blocks        int
	Fouls         int
	Turnovers     int
	MinutesPlayed float64
}

func (s StatLine) Pair() Pair {
	return Pair{PlayerID: s.PlayerID, TeamID: s.TeamID}
}

// Snapshot holds running per-game averages for one player or one team.
// Version is the highest stat line id folded into the averages.
type Snapshot struct {
	Kind             SubjectKind
	SubjectID        int64
	AvgPoints        float64
	AvgRebounds      float64
	AvgAssists       float64
	AvgSteals        float64
	AvgBlocks        float64
	AvgFouls         float64
	AvgTurnovers     float64
	AvgMinutesPlayed float64
	Games            int64
	Version          int64
}

// Pair identifies the player and team touched by one stat line. It is also the
// payload of an out-of-band update notification.
type Pair struct {
	PlayerID int64
	TeamID   int64
}
