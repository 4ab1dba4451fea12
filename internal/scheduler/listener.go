package scheduler

import (
	"context"
	"sync"

	"github.com/muaviaUsmani/adhan/internal/logger"
	"github.com/redis/go-redis/v9"
)

// TriggerChannel returns the pub/sub channel clients publish trigger names on
func TriggerChannel(prefix string) string {
	return prefix + "triggers"
}

// Listener fires passes for trigger names published on a Redis channel
type Listener struct {
	client  *redis.Client
	channel string
	guard   *Guard
	log     logger.Logger

	ready chan struct{}
	once  sync.Once
}

// NewListener creates a listener on channel
func NewListener(client *redis.Client, channel string, guard *Guard) *Listener {
	return &Listener{
		client:  client,
		channel: channel,
		guard:   guard,
		log:     logger.Default().WithComponent(logger.ComponentScheduler),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the subscription is confirmed
func (l *Listener) Ready() <-chan struct{} {
	return l.ready
}

// Start listens until ctx is cancelled, then waits for passes it started
func (l *Listener) Start(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	l.once.Do(func() { close(l.ready) })
	l.log.Info("Trigger listener subscribed", "channel", l.channel)

	var wg sync.WaitGroup
	defer wg.Wait()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Trigger listener stopping")
			return nil

		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			trigger, err := ParseTrigger(msg.Payload)
			if err != nil {
				l.log.Warn("Ignoring unknown trigger", "payload", msg.Payload, "error", err)
				continue
			}

			l.log.Debug("Trigger received", "trigger", string(trigger))
			wg.Add(1)
			done := l.guard.FireAsync(ctx, trigger)
			go func() {
				<-done
				wg.Done()
			}()
		}
	}
}

// Publish requests a pass from every listener on channel
func Publish(ctx context.Context, client *redis.Client, channel string, trigger Trigger) error {
	return client.Publish(ctx, channel, string(trigger)).Err()
}
