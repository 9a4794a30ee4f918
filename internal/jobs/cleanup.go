package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pointdeck/estimation-server-go/internal/config"
	"github.com/pointdeck/estimation-server-go/internal/repository"
)

// CleanupJob retires abandoned estimation rooms: sessions idle beyond the
// idle TTL are deactivated, and deactivated sessions past the retention
// window are deleted (cascades remove their backlog and votes). It never
// touches an open voting round's timer; the per-round timeout is advisory
// client-side metadata only.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(sessionRepo repository.SessionRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now()
	j.runCleanup(ctx, "idle sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeactivateIdle(ctx, now.Add(-config.SessionIdleTTL))
	})
	j.runCleanup(ctx, "retired sessions", func(ctx context.Context) (int64, error) {
		return j.sessionRepo.DeleteInactive(ctx, now.Add(-config.SessionRetention))
	})
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
