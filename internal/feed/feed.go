// Package feed delivers live snapshots of service requests. Writers publish a
// change signal after every durable write; each subscription re-queries the
// full matching snapshot per signal, so consumers always see complete state,
// never diffs.
package feed

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/domain"
	"github.com/spec-kit/repair-desk/internal/repository"
	apperrors "github.com/spec-kit/repair-desk/pkg/util"
)

// ChannelRequests is the change-notification channel for service requests.
const ChannelRequests = "service_requests:changed"

// Notifier abstracts the change-signal transport (redis pub/sub in production).
type Notifier interface {
	Publish(ctx context.Context, channel string) error
	Subscribe(ctx context.Context, channel string) (Listener, error)
}

// Listener yields one signal per underlying change until closed. A transport
// failure is reported on Errs rather than hanging the consumer.
type Listener interface {
	Signals() <-chan struct{}
	Errs() <-chan error
	Close() error
}

// Source provides the snapshot query behind the feed.
type Source interface {
	ListWithFilter(ctx context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, error)
}

// Feed creates live subscriptions over a snapshot source.
type Feed struct {
	source   Source
	notifier Notifier
	logger   *zap.Logger
}

// New constructs a Feed.
func New(source Source, notifier Notifier, logger *zap.Logger) *Feed {
	return &Feed{source: source, notifier: notifier, logger: logger}
}

// Subscription is a live view over matching requests. Stop is idempotent and
// guarantees no further delivery once it returns.
type Subscription struct {
	snapshots chan []domain.ServiceRequest
	errs      chan error
	stop      chan struct{}
	stopOnce  sync.Once
	listener  Listener
}

// Snapshots yields the full current set of matching records on each change.
func (s *Subscription) Snapshots() <-chan []domain.ServiceRequest {
	return s.snapshots
}

// Errs reports a feed failure; after an error no further snapshots arrive.
func (s *Subscription) Errs() <-chan error {
	return s.errs
}

// Stop tears the subscription down and releases the underlying listener.
func (s *Subscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		_ = s.listener.Close()
	})
}

// Subscribe opens a live feed of requests matching filter. The first snapshot
// is delivered without waiting for a change signal.
func (f *Feed) Subscribe(ctx context.Context, filter repository.RequestFilter) (*Subscription, error) {
	listener, err := f.notifier.Subscribe(ctx, ChannelRequests)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailable("change feed", err)
	}

	sub := &Subscription{
		snapshots: make(chan []domain.ServiceRequest, 1),
		errs:      make(chan error, 1),
		stop:      make(chan struct{}),
		listener:  listener,
	}
	go f.run(ctx, sub, filter)
	return sub, nil
}

// Notify signals all subscribers that the request collection changed.
func (f *Feed) Notify(ctx context.Context) {
	if err := f.notifier.Publish(ctx, ChannelRequests); err != nil {
		f.logger.Warn("feed notify failed", zap.Error(err))
	}
}

func (f *Feed) run(ctx context.Context, sub *Subscription, filter repository.RequestFilter) {
	if !f.refresh(ctx, sub, filter) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			sub.Stop()
			return
		case <-sub.stop:
			return
		case err, ok := <-sub.listener.Errs():
			if !ok {
				return
			}
			sub.fail(apperrors.NewUpstreamUnavailable("change feed", err))
			sub.Stop()
			return
		case _, ok := <-sub.listener.Signals():
			if !ok {
				return
			}
			if !f.refresh(ctx, sub, filter) {
				return
			}
		}
	}
}

// refresh queries and delivers a snapshot; returns false when the
// subscription should terminate.
func (f *Feed) refresh(ctx context.Context, sub *Subscription, filter repository.RequestFilter) bool {
	snapshot, err := f.source.ListWithFilter(ctx, filter)
	if err != nil {
		sub.fail(apperrors.MapError(err))
		sub.Stop()
		return false
	}
	sub.deliver(snapshot)
	return true
}

// deliver replaces any undelivered snapshot with the latest one so a slow
// consumer always observes current state.
func (s *Subscription) deliver(snapshot []domain.ServiceRequest) {
	for {
		select {
		case <-s.stop:
			return
		case s.snapshots <- snapshot:
			return
		default:
			select {
			case <-s.snapshots:
			default:
			}
		}
	}
}

func (s *Subscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
