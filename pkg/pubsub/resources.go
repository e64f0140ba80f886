package pubsub

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

// lookupFunc fetches a resource by full name and returns the admin API error.
type lookupFunc func(ctx context.Context, kind, fullName string) error

func (c *Client) adminLookup(ctx context.Context, kind, fullName string) error {
	var err error
	switch kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: fullName})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: fullName})
	default:
		err = fmt.Errorf("unknown resource kind %q", kind)
	}
	return err
}

// Ping checks every configured topic and requested subscription concurrently
// and reports the first failure.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.lookup == nil {
		return errNotInitialized
	}
	group, gctx := errgroup.WithContext(ctx)
	check := func(kind, name string) {
		group.Go(func() error { return c.exists(gctx, kind, name) })
	}
	for _, topic := range c.Topics() {
		check(kindTopic, topic)
	}
	for _, sub := range c.subscriptions {
		check(kindSubscription, sub)
	}
	return group.Wait()
}

func (c *Client) exists(ctx context.Context, kind, name string) error {
	label := strings.TrimSuffix(kind, "s")
	full := resourceName(c.projectID, kind, name)
	if full == "" {
		return fmt.Errorf("%s %q not configured", label, name)
	}
	err := c.lookup(ctx, kind, full)
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", label, name)
	}
	return fmt.Errorf("checking %s %q: %w", label, name, err)
}

// resourceName expands an ID to projects/<project>/<kind>/<id>; full names pass through.
func resourceName(projectID, kind, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+kind+"/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/" + kind + "/" + n
}
