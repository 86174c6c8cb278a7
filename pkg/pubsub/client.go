package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/profitlens/pkg/config"
	"github.com/angelmondragon/profitlens/pkg/logger"
)

const defaultAckDeadlineSeconds = 60

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Client owns the fee change topic and its optional warehouse subscription.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient connects and checks the topic and subscription. With
// cfg.AutoCreate set, missing ones are created; the subscription is bound
// to the fee change topic.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.FeeChangeTopic) == "" {
		return nil, errNoTopics
	}

	ps, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     ps,
		projectID:  projectID,
		cfg:        cfg,
		publishers: map[string]*pubsub.Publisher{},
	}

	created, err := c.provision(ctx)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"topic":        cfg.FeeChangeTopic,
			"subscription": cfg.FeeChangeSubscription,
			"created":      created,
		}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) provision(ctx context.Context) ([]string, error) {
	var created []string
	topic := c.resourceName(kindTopic, c.cfg.FeeChangeTopic)
	made, err := c.ensure(ctx, kindTopic, topic, func() error {
		_, err := c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
		return err
	})
	if err != nil {
		return nil, err
	}
	if made {
		created = append(created, topic)
	}

	// Publishing processes run without a subscription.
	if strings.TrimSpace(c.cfg.FeeChangeSubscription) == "" {
		return created, nil
	}
	sub := c.resourceName(kindSubscription, c.cfg.FeeChangeSubscription)
	made, err = c.ensure(ctx, kindSubscription, sub, func() error {
		_, err := c.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
			Name:               sub,
			Topic:              topic,
			AckDeadlineSeconds: defaultAckDeadlineSeconds,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if made {
		created = append(created, sub)
	}
	return created, nil
}

// ensure reports whether it had to create the resource.
func (c *Client) ensure(ctx context.Context, kind resourceKind, name string, create func() error) (bool, error) {
	return c.ensureWith(ctx, c.check, kind, name, create)
}

func (c *Client) ensureWith(ctx context.Context, check func(context.Context, resourceKind, string) error, kind resourceKind, name string, create func() error) (bool, error) {
	err := check(ctx, kind, name)
	if err == nil {
		return false, nil
	}
	if status.Code(err) != codes.NotFound || !c.cfg.AutoCreate {
		return false, err
	}
	if err := create(); err != nil && status.Code(err) != codes.AlreadyExists {
		return false, fmt.Errorf("creating %s %q: %w", kind, name, err)
	}
	return true, nil
}

func (c *Client) check(ctx context.Context, kind resourceKind, name string) error {
	var err error
	switch kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	case kindSubscription:
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	}
	if err != nil {
		return fmt.Errorf("checking %s %q: %w", kind, name, err)
	}
	return nil
}

// Publisher returns a cached publisher for a topic ID or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindTopic, name)
	if fullName == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[fullName]; ok {
		return p
	}
	p := c.client.Publisher(fullName)
	c.publishers[fullName] = p
	return p
}

// FeeChangeSubscription returns the subscriber the warehouse worker consumes.
func (c *Client) FeeChangeSubscription() *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	fullName := c.resourceName(kindSubscription, c.cfg.FeeChangeSubscription)
	if fullName == "" {
		return nil
	}
	return c.client.Subscriber(fullName)
}

// Ping checks that the topic and subscription are reachable without
// creating anything.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if err := c.check(ctx, kindTopic, c.resourceName(kindTopic, c.cfg.FeeChangeTopic)); err != nil {
		return err
	}
	if strings.TrimSpace(c.cfg.FeeChangeSubscription) == "" {
		return nil
	}
	return c.check(ctx, kindSubscription, c.resourceName(kindSubscription, c.cfg.FeeChangeSubscription))
}

// Close stops cached publishers, flushing pending messages, then releases
// the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// resourceName expands an ID to projects/<project>/<kind>/<id>. Full names
// of the same kind pass through unchanged.
func (c *Client) resourceName(kind resourceKind, name string) string {
	if c == nil {
		return ""
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/"+string(kind)+"/") {
		return n
	}
	if c.projectID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", c.projectID, kind, n)
}
