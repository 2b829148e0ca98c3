package statcache

import (
	"errors"
	"strconv"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
)

// ErrUnavailable marks transport faults of the cache backend.
var ErrUnavailable = errors.New("stat cache unavailable")

const (
	playerStatsPrefix = "player:stats:"
	teamStatsPrefix   = "team:stats:"
	playerLockPrefix  = "player:lock:"
	teamLockPrefix    = "team:lock:"
)

type OpKind int

const (
	OpSet OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Op is one step of a Transact call. TTL zero means no expiry.
type Op struct {
	Kind  OpKind
	Key   string
	Value []byte
	TTL   time.Duration
}

func SetOp(key string, value []byte, ttl time.Duration) Op {
	return Op{Kind: OpSet, Key: key, Value: value, TTL: ttl}
}

func DeleteOp(key string) Op {
	return Op{Kind: OpDelete, Key: key}
}

func StatsKey(kind gamestats.SubjectKind, subjectID int64) string {
	switch kind {
	case gamestats.SubjectTeam:
		return teamStatsPrefix + strconv.FormatInt(subjectID, 10)
	default:
		return playerStatsPrefix + strconv.FormatInt(subjectID, 10)
	}
}

func LockKey(kind gamestats.SubjectKind, subjectID int64) string {
	switch kind {
	case gamestats.SubjectTeam:
		return teamLockPrefix + strconv.FormatInt(subjectID, 10)
	default:
		return playerLockPrefix + strconv.FormatInt(subjectID, 10)
	}
}

// PairStatsKeys returns the player and team entry keys of a pair, player first.
func PairStatsKeys(pair gamestats.Pair) []string {
	return []string{
		StatsKey(gamestats.SubjectPlayer, pair.PlayerID),
		StatsKey(gamestats.SubjectTeam, pair.TeamID),
	}
}
