package feed

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier transports change signals over redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier wraps an existing redis client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Publish sends a change signal on the channel.
func (n *RedisNotifier) Publish(ctx context.Context, channel string) error {
	return n.client.Publish(ctx, channel, "1").Err()
}

// Subscribe opens a pub/sub listener on the channel.
func (n *RedisNotifier) Subscribe(ctx context.Context, channel string) (Listener, error) {
	pubsub := n.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	l := &redisListener{
		pubsub:  pubsub,
		signals: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go l.loop(ctx)
	return l, nil
}

type redisListener struct {
	pubsub  *redis.PubSub
	signals chan struct{}
	errs    chan error
	done    chan struct{}
}

func (l *redisListener) Signals() <-chan struct{} { return l.signals }
func (l *redisListener) Errs() <-chan error       { return l.errs }

func (l *redisListener) Close() error {
	select {
	case <-l.done:
		return nil
	default:
	}
	close(l.done)
	return l.pubsub.Close()
}

func (l *redisListener) loop(ctx context.Context) {
	for {
		_, err := l.pubsub.ReceiveMessage(ctx)
		if err != nil {
			select {
			case <-l.done:
				// closed by the subscriber, not a transport failure
			default:
				select {
				case l.errs <- err:
				default:
				}
			}
			return
		}
		select {
		case l.signals <- struct{}{}:
		case <-l.done:
			return
		default:
			// a signal is already pending; changes coalesce
		}
	}
}
