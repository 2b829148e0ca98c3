package usecase

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
)

var snapshotAPI = sonic.Config{
	DisallowUnknownFields: true,
}.Froze()

// snapshotWire is the cached representation of a snapshot.
type snapshotWire struct {
	SubjectKind      string  `json:"subject_kind"`
	SubjectID        int64   `json:"subject_id"`
	AvgPoints        float64 `json:"avg_points"`
	AvgRebounds      float64 `json:"avg_rebounds"`
	AvgAssists       float64 `json:"avg_assists"`
	AvgSteals        float64 `json:"avg_steals"`
	AvgBlocks        float64 `json:"avg_blocks"`
	AvgFouls         float64 `json:"avg_fouls"`
	AvgTurnovers     float64 `json:"avg_turnovers"`
	AvgMinutesPlayed float64 `json:"avg_minutes_played"`
	Games            int64   `json:"games"`
	Version          int64   `json:"version"`
}

func EncodeSnapshot(s gamestats.Snapshot) ([]byte, error) {
	raw, err := snapshotAPI.Marshal(snapshotWire{
		SubjectKind:      string(s.Kind),
		SubjectID:        s.SubjectID,
		AvgPoints:        s.AvgPoints,
		AvgRebounds:      s.AvgRebounds,
		AvgAssists:       s.AvgAssists,
		AvgSteals:        s.AvgSteals,
		AvgBlocks:        s.AvgBlocks,
		AvgFouls:         s.AvgFouls,
		AvgTurnovers:     s.AvgTurnovers,
		AvgMinutesPlayed: s.AvgMinutesPlayed,
		Games:            s.Games,
		Version:          s.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s snapshot %d: %w", s.Kind, s.SubjectID, err)
	}
	return raw, nil
}

func DecodeSnapshot(raw []byte) (gamestats.Snapshot, error) {
	var w snapshotWire
	if err := snapshotAPI.Unmarshal(raw, &w); err != nil {
		return gamestats.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	kind := gamestats.SubjectKind(w.SubjectKind)
	if !kind.Valid() {
		return gamestats.Snapshot{}, fmt.Errorf("decode snapshot: unknown subject kind %q", w.SubjectKind)
	}
	if w.SubjectID < 1 {
		return gamestats.Snapshot{}, fmt.Errorf("decode snapshot: invalid subject id %d", w.SubjectID)
	}

	return gamestats.Snapshot{
		Kind:             kind,
		SubjectID:        w.SubjectID,
		AvgPoints:        w.AvgPoints,
		AvgRebounds:      w.AvgRebounds,
		AvgAssists:       w.AvgAssists,
		AvgSteals:        w.AvgSteals,
		AvgBlocks:        w.AvgBlocks,
		AvgFouls:         w.AvgFouls,
		AvgTurnovers:     w.AvgTurnovers,
		AvgMinutesPlayed: w.AvgMinutesPlayed,
		Games:            w.Games,
		Version:          w.Version,
	}, nil
}
