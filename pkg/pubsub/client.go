// Package pubsub wraps the Pub/Sub v2 client with the sourcing topic and
// subscription names.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
	"github.com/angelmondragon/sourcing-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub negotiation topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	// subscriptions checked by Ping; empty for publish-only processes
	subscriptions []string
	lookup        lookupFunc
}

// Option adjusts client construction.
type Option func(*Client)

// WithSubscriptions makes NewClient and Ping verify that the named
// subscriptions exist.
func WithSubscriptions(names ...string) Option {
	return func(c *Client) {
		for _, name := range names {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				c.subscriptions = append(c.subscriptions, trimmed)
			}
		}
	}
}

// NewClient connects and fails fast when a configured topic or requested
// subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	switch {
	case strings.TrimSpace(gcp.ProjectID) == "":
		return nil, errProjectIDRequired
	case strings.TrimSpace(cfg.NegotiationTopic) == "":
		return nil, errNoTopics
	}

	var clientOpts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, gcp.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{client: raw, projectID: gcp.ProjectID, cfg: cfg}
	c.lookup = c.adminLookup
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topics":        c.Topics(),
			"subscriptions": c.subscriptions,
		}), "pubsub client initialized")
	}
	return c, nil
}

// Topics lists the distinct configured topic IDs.
func (c *Client) Topics() []string {
	return TopicNames(c.cfg)
}

// TopicNames returns the non-empty distinct topics from cfg.
func TopicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, name := range []string{cfg.NegotiationTopic, cfg.NotificationTopic} {
		trimmed := strings.TrimSpace(name)
		if trimmed != "" && !contains(names, trimmed) {
			names = append(names, trimmed)
		}
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Subscription returns a subscriber for an ID or full resource name, or nil
// when the client or name is unusable.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	full := c.fullName(kindSubscription, name)
	if full == "" {
		return nil
	}
	return c.client.Subscriber(full)
}

// AnalyticsSubscription returns the subscriber feeding the BigQuery sink.
func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for an ID or full resource name. Callers own
// Stop on the result.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	full := c.fullName(kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) fullName(kind, name string) string {
	if c == nil || c.client == nil {
		return ""
	}
	return resourceName(c.projectID, kind, name)
}
