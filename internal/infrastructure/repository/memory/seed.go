package memory

import "github.com/riskibarqy/courtstats/internal/domain/gamestats"

const (
	TeamIDLakers   int64 = 14
	TeamIDWarriors int64 = 10

	PlayerIDJames int64 = 23
	PlayerIDDavis int64 = 3
	PlayerIDCurry int64 = 30
	PlayerIDGreen int64 = 4
)

// SeedStatLines is a small two-game slate for local runs with the memory store.
func SeedStatLines() []gamestats.StatLine {
	return []gamestats.StatLine{
		{PlayerID: PlayerIDJames, TeamID: TeamIDLakers, GameID: 1, Points: 28, Rebounds: 8, Assists: 9, Steals: 1, Blocks: 1, Fouls: 2, Turnovers: 4, MinutesPlayed: 36.5},
		{PlayerID: PlayerIDDavis, TeamID: TeamIDLakers, GameID: 1, Points: 24, Rebounds: 12, Assists: 3, Steals: 2, Blocks: 3, Fouls: 3, Turnovers: 2, MinutesPlayed: 34},
		{PlayerID: PlayerIDCurry, TeamID: TeamIDWarriors, GameID: 1, Points: 31, Rebounds: 5, Assists: 7, Steals: 2, Fouls: 1, Turnovers: 3, MinutesPlayed: 35},
		{PlayerID: PlayerIDGreen, TeamID: TeamIDWarriors, GameID: 1, Points: 9, Rebounds: 10, Assists: 8, Steals: 1, Blocks: 1, Fouls: 5, Turnovers: 3, MinutesPlayed: 30.5},
		{PlayerID: PlayerIDJames, TeamID: TeamIDLakers, GameID: 2, Points: 22, Rebounds: 10, Assists: 11, Steals: 2, Fouls: 1, Turnovers: 5, MinutesPlayed: 38},
		{PlayerID: PlayerIDCurry, TeamID: TeamIDWarriors, GameID: 2, Points: 27, Rebounds: 4, Assists: 6, Steals: 1, Fouls: 2, Turnovers: 2, MinutesPlayed: 33.5},
	}
}
