package pubsub

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/sourcing-backend/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		name, project, kind, in, want string
	}{
		{"id expands", "proj", "topics", "sourcing-negotiation-events", "projects/proj/topics/sourcing-negotiation-events"},
		{"full name passes", "proj", "subscriptions", "projects/other/subscriptions/a", "projects/other/subscriptions/a"},
		{"wrong kind expands", "proj", "topics", "projects/other/subscriptions/a", "projects/proj/topics/projects/other/subscriptions/a"},
		{"blank", "proj", "topics", "  ", ""},
		{"no project", "", "topics", "t", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.in))
		})
	}
}

func TestTopicNamesDeduplicates(t *testing.T) {
	names := TopicNames(config.PubSubConfig{NegotiationTopic: "events", NotificationTopic: " events "})
	assert.Equal(t, []string{"events"}, names)

	names = TopicNames(config.PubSubConfig{NegotiationTopic: "events", NotificationTopic: "alerts"})
	assert.Equal(t, []string{"events", "alerts"}, names)
}

func TestWithSubscriptionsSkipsBlank(t *testing.T) {
	c := &Client{}
	WithSubscriptions("analytics", "", "  ")(c)
	assert.Equal(t, []string{"analytics"}, c.subscriptions)
}

func TestPingChecksEveryResource(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c := &Client{
		projectID:     "proj",
		cfg:           config.PubSubConfig{NegotiationTopic: "events", NotificationTopic: "alerts"},
		subscriptions: []string{"analytics"},
		lookup: func(_ context.Context, _ string, fullName string) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, fullName)
			return nil
		},
	}
	require.NoError(t, c.Ping(context.Background()))
	assert.ElementsMatch(t, []string{
		"projects/proj/topics/events",
		"projects/proj/topics/alerts",
		"projects/proj/subscriptions/analytics",
	}, seen)
}

func TestPingReportsMissingResource(t *testing.T) {
	c := &Client{
		projectID:     "proj",
		cfg:           config.PubSubConfig{NegotiationTopic: "events"},
		subscriptions: []string{"analytics"},
		lookup: func(_ context.Context, kind, _ string) error {
			if kind == kindSubscription {
				return status.Error(codes.NotFound, "gone")
			}
			return nil
		},
	}
	err := c.Ping(context.Background())
	require.EqualError(t, err, `subscription "analytics" does not exist`)

	c.lookup = func(context.Context, string, string) error { return status.Error(codes.PermissionDenied, "nope") }
	err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(errors.Unwrap(err)))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.Nil(t, c.Publisher("events"))
	assert.Nil(t, c.AnalyticsSubscription())
	assert.NoError(t, c.Close())
}
