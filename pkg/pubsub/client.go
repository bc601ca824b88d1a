package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/palletwine/palletwine-backend/pkg/config"
	"github.com/palletwine/palletwine-backend/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errTopicRequired     = errors.New("pubsub pallet events topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// Delivery resolves to the server-assigned message id once the publish is
// acknowledged.
type Delivery interface {
	Get(ctx context.Context) (string, error)
}

// Client publishes domain events. Publishers are created lazily per topic
// with message ordering on, so events sharing an ordering key arrive in
// the order they were published.
type Client struct {
	client    *pubsub.Client
	projectID string
	topic     string

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewClient creates a Pub/Sub client and verifies the pallet events topic
// exists.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.PalletEventsTopic)
	if topic == "" {
		return nil, errTopicRequired
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(gcp.CredentialsJSON); creds != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	}
	raw, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:     raw,
		projectID:  projectID,
		topic:      topic,
		publishers: map[string]*pubsub.Publisher{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topic", topic), "pubsub client initialized")
	}
	return c, nil
}

// PalletEventsTopic is where every pallet and reservation event goes.
func (c *Client) PalletEventsTopic() string {
	if c == nil {
		return ""
	}
	return c.topic
}

// Publish queues msg on topic without waiting for the ack. A failed
// delivery resumes its ordering key so later events for the same
// aggregate are not stuck behind it.
func (c *Client) Publish(ctx context.Context, topic string, msg *pubsub.Message) Delivery {
	pub, err := c.publisher(topic)
	if err != nil {
		return failedDelivery{err: err}
	}
	return &orderedDelivery{
		result: pub.Publish(ctx, msg),
		pub:    pub,
		key:    msg.OrderingKey,
	}
}

func (c *Client) publisher(topic string) (*pubsub.Publisher, error) {
	if c == nil || c.client == nil {
		return nil, errNotInitialized
	}
	name := TopicResourceName(c.projectID, topic)
	if name == "" {
		return nil, fmt.Errorf("invalid topic %q", topic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if pub, ok := c.publishers[name]; ok {
		return pub, nil
	}
	pub := c.client.Publisher(name)
	pub.EnableMessageOrdering = true
	c.publishers[name] = pub
	return pub, nil
}

// Ping looks up the pallet events topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
		Topic: TopicResourceName(c.projectID, c.topic),
	})
	switch {
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("topic %q does not exist", c.topic)
	case err != nil:
		return fmt.Errorf("checking topic %q: %w", c.topic, err)
	}
	return nil
}

// Close flushes outstanding publishes before releasing the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, pub := range c.publishers {
		pub.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

// TopicResourceName expands a bare topic id into projects/<p>/topics/<id>.
func TopicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return "projects/" + p + "/topics/" + n
}

type orderedDelivery struct {
	result *pubsub.PublishResult
	pub    *pubsub.Publisher
	key    string
}

func (d *orderedDelivery) Get(ctx context.Context) (string, error) {
	id, err := d.result.Get(ctx)
	if err != nil && d.key != "" {
		d.pub.ResumePublish(d.key)
	}
	return id, err
}

type failedDelivery struct{ err error }

func (d failedDelivery) Get(context.Context) (string, error) { return "", d.err }
