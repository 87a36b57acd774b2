package usecase

import (
	"context"
	"fmt"
	"time"

	crerr "github.com/cockroachdb/errors"

	"github.com/dagwatch/dagwatch/internal/platform/logging"
	"github.com/dagwatch/dagwatch/internal/storage"
)

// recentEventWindow is how many archive events a daily run inspects for
// newly completed fights. Events complete at most weekly, so a small window
// with overlap is enough to never miss one.
const recentEventWindow = 3

type RefreshConfig struct {
	// RecentEvents overrides recentEventWindow when positive.
	RecentEvents int
	// LockTTL is how long a held run lock is honored before it is
	// considered abandoned by a crashed run.
	LockTTL time.Duration
}

type refreshLock struct {
	StartedAt string `json:"startedAt"`
}

// RefreshService runs the full reconciliation pass: merge newly completed
// fights, rebuild the upcoming collection, recompute stats. The last-refresh
// timestamp is written only when every step succeeded.
type RefreshService struct {
	reconcile *ReconcileService
	stats     *StatsService
	store     storage.Store
	logger    *logging.Logger
	cfg       RefreshConfig
	now       func() time.Time
}

func NewRefreshService(
	reconcile *ReconcileService,
	stats *StatsService,
	store storage.Store,
	logger *logging.Logger,
	cfg RefreshConfig,
) *RefreshService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.RecentEvents < 1 {
		cfg.RecentEvents = recentEventWindow
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Minute
	}
	return &RefreshService{
		reconcile: reconcile,
		stats:     stats,
		store:     store,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run executes one refresh pass. Step failures do not abort later steps so a
// broken archive cannot stop the upcoming rebuild, but any failed step makes
// the whole run fail and suppresses the timestamp update.
func (s *RefreshService) Run(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "RefreshService.Run")
	defer span.End()

	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer s.releaseLock(ctx)

	started := s.now().UTC()
	s.logger.InfoContext(ctx, "refresh started", "recent_events", s.cfg.RecentEvents)

	var runErr error

	added, err := s.reconcile.MergeCompleted(ctx, s.cfg.RecentEvents, 0)
	if err != nil {
		s.logger.ErrorContext(ctx, "merge completed fights failed", "error", err)
		runErr = crerr.CombineErrors(runErr, fmt.Errorf("merge completed: %w", err))
	} else {
		s.logger.InfoContext(ctx, "merge completed fights done", "added", added)
	}
	if ctx.Err() != nil {
		return crerr.CombineErrors(runErr, ctx.Err())
	}

	upcoming, err := s.reconcile.RebuildUpcoming(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "rebuild upcoming failed, existing collection kept", "error", err)
		runErr = crerr.CombineErrors(runErr, fmt.Errorf("rebuild upcoming: %w", err))
	} else {
		s.logger.InfoContext(ctx, "rebuild upcoming done", "matches", len(upcoming))
	}
	if ctx.Err() != nil {
		return crerr.CombineErrors(runErr, ctx.Err())
	}

	if _, err := s.stats.Recompute(ctx); err != nil {
		s.logger.ErrorContext(ctx, "stats recompute failed", "error", err)
		runErr = crerr.CombineErrors(runErr, fmt.Errorf("recompute stats: %w", err))
	}

	if runErr != nil {
		return runErr
	}

	timestamp := s.now().UTC().Format(time.RFC3339)
	if err := s.store.Write(ctx, storage.DocLastRefresh, map[string]string{"timestamp": timestamp}); err != nil {
		return fmt.Errorf("persist refresh timestamp: %w", err)
	}
	s.logger.InfoContext(ctx, "refresh complete", "duration", s.now().UTC().Sub(started).String(), "timestamp", timestamp)
	return nil
}

// acquireLock claims the run lock document. A lock younger than the TTL
// means another run is in flight; an older one is treated as abandoned.
func (s *RefreshService) acquireLock(ctx context.Context) error {
	var lock refreshLock
	if s.store.Read(ctx, storage.DocRefreshLock, &lock) && lock.StartedAt != "" {
		startedAt, err := time.Parse(time.RFC3339, lock.StartedAt)
		if err == nil && s.now().UTC().Sub(startedAt) < s.cfg.LockTTL {
			return fmt.Errorf("%w: started at %s", ErrRefreshInProgress, lock.StartedAt)
		}
		if err == nil {
			s.logger.WarnContext(ctx, "taking over stale refresh lock", "started_at", lock.StartedAt)
		}
	}

	lock = refreshLock{StartedAt: s.now().UTC().Format(time.RFC3339)}
	if err := s.store.Write(ctx, storage.DocRefreshLock, lock); err != nil {
		return fmt.Errorf("acquire refresh lock: %w", err)
	}
	return nil
}

func (s *RefreshService) releaseLock(ctx context.Context) {
	if err := s.store.Write(ctx, storage.DocRefreshLock, refreshLock{}); err != nil {
		s.logger.WarnContext(ctx, "release refresh lock failed", "error", err)
	}
}
