package main

import (
	"context"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// topicPublishers reuses the client's long-lived lifecycle publisher and asks
// the client for any other topic by name.
func topicPublishers(client pubSubClient, lifecycleTopic string) publisherFactory {
	return func(topic string) publisher {
		var p *gcppubsub.Publisher
		if topic == lifecycleTopic {
			p = client.LifecyclePublisher()
		} else {
			p = client.Publisher(topic)
		}
		if p == nil {
			return nil
		}
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.p.Publish(ctx, msg)
}

const jitterWindow = 250 * time.Millisecond

// backoff doubles from base up to max after each failure. Every wait carries
// up to jitterWindow of random delay so publishers do not poll in lockstep.
type backoff struct {
	base, max, current time.Duration
}

func newBackoff(base, max time.Duration) *backoff {
	return &backoff{base: base, max: max, current: base}
}

func (b *backoff) next() time.Duration {
	b.current = min(b.current*2, b.max)
	return jitter(b.current)
}

func (b *backoff) idle() time.Duration { return jitter(b.base) }

func (b *backoff) reset() { b.current = b.base }

func jitter(d time.Duration) time.Duration {
	return d + rand.N(jitterWindow)
}
