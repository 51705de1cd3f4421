package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/Clark-Hu/movielog/internal/catalog"
	"github.com/Clark-Hu/movielog/internal/domain"
	"github.com/Clark-Hu/movielog/internal/events"
	"github.com/Clark-Hu/movielog/internal/repository"
)

// publishTimeout bounds how long a committed write waits on the broker.
const publishTimeout = 2 * time.Second

// Service performs rating, review and account-deletion writes. Each call is
// one transaction; the movie row is locked before its aggregate is read.
type Service struct {
	tx       repository.TxRunner
	repo     *repository.Repository
	resolver *catalog.Resolver
	events   events.Publisher
	logger   *slog.Logger

	publishTimeout time.Duration
}

func NewService(tx repository.TxRunner, repo *repository.Repository, resolver *catalog.Resolver, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		resolver: resolver,
		events:   publisher,
		logger:   logger.With("component", "ledger"),

		publishTimeout: publishTimeout,
	}
}

func (s *Service) inTx(ctx context.Context, op string, fn func(ctx context.Context, repo *repository.Repository) error) error {
	return s.repo.InTx(ctx, s.tx, op, fn)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", "type", event.Type, "error", err)
	}
}

func aggregateEvent(agg domain.RatingAggregate) *events.Aggregate {
	return &events.Aggregate{Count: agg.Count, Sum: agg.Sum, Average: agg.Average}
}
