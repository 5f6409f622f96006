package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PolicySubscriber delivers policy change notifications.
type PolicySubscriber interface {
	Subscribe(ctx context.Context, fn func(ctx context.Context, policyID string)) error
}

// CatalogRefresher reloads the policy catalog.
type CatalogRefresher interface {
	RefreshCatalog(ctx context.Context) error
}

// PolicyListener keeps the local catalog in step with changes made by other instances.
type PolicyListener struct {
	subscriber PolicySubscriber
	refresher  CatalogRefresher
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewPolicyListener builds a listener.
func NewPolicyListener(subscriber PolicySubscriber, refresher CatalogRefresher, logger *zap.Logger) *PolicyListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PolicyListener{
		subscriber: subscriber,
		refresher:  refresher,
		logger:     logger.Named("policy_listener"),
		retryDelay: 5 * time.Second,
	}
}

// Run subscribes until ctx is cancelled, resubscribing after failures.
func (l *PolicyListener) Run(ctx context.Context) {
	for {
		err := l.subscriber.Subscribe(ctx, l.handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("policy subscription ended", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
		// Changes may have been missed while disconnected.
		l.handle(ctx, "")
	}
}

func (l *PolicyListener) handle(ctx context.Context, policyID string) {
	if err := l.refresher.RefreshCatalog(ctx); err != nil {
		l.logger.Warn("catalog refresh failed", zap.String("policy_id", policyID), zap.Error(err))
		return
	}
	l.logger.Debug("catalog refreshed", zap.String("policy_id", policyID))
}
