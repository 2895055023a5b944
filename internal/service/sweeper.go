package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"storyapi/internal/repository"
	"storyapi/internal/storage"
)

// Sweeper removes the media objects and rows of expired stories. Reads never
// rely on it: expired stories are filtered out by query regardless.
type Sweeper struct {
	repo      repository.StoryRepository
	store     storage.Storage
	clock     clockwork.Clock
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

// NewSweeper constructs a Sweeper.
func NewSweeper(repo repository.StoryRepository, store storage.Storage, clock clockwork.Clock, batchSize int, logger *slog.Logger, metrics *Metrics) *Sweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		repo:      repo,
		store:     store,
		clock:     clock,
		batchSize: batchSize,
		logger:    logger.With("component", "sweeper"),
		metrics:   metrics,
	}
}

// Sweep deletes every story expired at the current time and returns how many
// rows were removed. A story whose object cannot be deleted keeps its row so the
// next run retries it.
func (s *Sweeper) Sweep(ctx context.Context) (total int, err error) {
	ctx, span := tracer.Start(ctx, "service.Sweep")
	defer func() { endSpan(span, err) }()

	start := time.Now()
	now := s.clock.Now().UTC()

	for {
		expired, err := s.repo.ListExpired(ctx, now, s.batchSize)
		if err != nil {
			return total, fmt.Errorf("list expired stories: %w", err)
		}
		if len(expired) == 0 {
			break
		}

		ids := make([]string, 0, len(expired))
		for _, st := range expired {
			if err := s.store.Delete(ctx, st.StoragePath); err != nil {
				s.logger.Warn("sweep_object_failed",
					"story_id", st.ID,
					"storage_path", st.StoragePath,
					"error", err.Error(),
				)
				continue
			}
			ids = append(ids, st.ID)
		}

		n, err := s.repo.DeleteStories(ctx, ids)
		if err != nil {
			return total, fmt.Errorf("delete expired stories: %w", err)
		}
		total += int(n)

		// A short batch or a batch where nothing could be removed ends the run.
		if len(expired) < s.batchSize || len(ids) == 0 {
			break
		}
	}

	s.metrics.swept(total)
	s.logger.Info("sweep_done",
		"status", "success",
		"deleted", total,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total, nil
}

// Start schedules Sweep every interval and starts the scheduler. The caller
// owns the returned scheduler and must Shutdown it.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep_failed", "status", "error", "error", err.Error())
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("story-sweeper"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("schedule sweeper: %w", err)
	}

	scheduler.Start()
	return scheduler, nil
}
