package gamestats

import "context"

// Repository is the authoritative store of stat lines. AggregateBy reports
// found=false when the subject has no stat lines yet.
type Repository interface {
	Insert(ctx context.Context, line StatLine) (int64, error)
	AggregateBy(ctx context.Context, kind SubjectKind, subjectID int64) (Snapshot, bool, error)
	ListPairs(ctx context.Context) ([]Pair, error)
}
