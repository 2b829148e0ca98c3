package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
)

const RefreshCachePath = "/v1/internal/jobs/refresh-cache"

// RefreshPayload is the body delivered to the refresh-cache push endpoint.
type RefreshPayload struct {
	PlayerID int64 `json:"playerId"`
	TeamID   int64 `json:"teamId"`
}

type Publisher interface {
	Publish(ctx context.Context, job Job) error
}

// RefreshScheduler asks QStash to call the refresh endpoint for a pair after
// a delay. Requests for the same pair inside one delay window are
// deduplicated by QStash.
type RefreshScheduler struct {
	publisher Publisher
	delay     time.Duration
	now       func() time.Time
}

func NewRefreshScheduler(p Publisher, delay time.Duration) *RefreshScheduler {
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &RefreshScheduler{publisher: p, delay: delay, now: time.Now}
}

func (s *RefreshScheduler) ScheduleRefresh(ctx context.Context, pair gamestats.Pair) error {
	window := s.now().Truncate(s.delay).Unix()
	return s.publisher.Publish(ctx, Job{
		Path:            RefreshCachePath,
		Payload:         RefreshPayload{PlayerID: pair.PlayerID, TeamID: pair.TeamID},
		Delay:           s.delay,
		DeduplicationID: fmt.Sprintf("cache-repair-%d-%d-%d", pair.PlayerID, pair.TeamID, window),
	})
}
