package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// gcpPublishers caches one publisher per topic for the life of the process.
type gcpPublishers struct {
	open  func(topic string) *gcppubsub.Publisher
	cache map[string]*gcppubsub.Publisher
}

func newGCPPublishers(open func(topic string) *gcppubsub.Publisher) *gcpPublishers {
	return &gcpPublishers{open: open, cache: map[string]*gcppubsub.Publisher{}}
}

func (g *gcpPublishers) factory(topic string) publisher {
	p, ok := g.cache[topic]
	if !ok {
		if p = g.open(topic); p == nil {
			return nil
		}
		g.cache[topic] = p
	}
	return gcpPublisher{p}
}

// stop flushes and stops every cached publisher.
func (g *gcpPublishers) stop() {
	for _, p := range g.cache {
		p.Stop()
	}
}

type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpPublishResult{g.p.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	r *gcppubsub.PublishResult
}

func (g gcpPublishResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errNilResult
	}
	return g.r.Get(ctx)
}
