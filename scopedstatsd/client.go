package scopedstatsd

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"
)

//go:generate mockgen -source=client.go -destination=mock_client.go -package=scopedstatsd

// Client represents the statsd client functions the decoder service uses to
// report on itself.
type Client interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Count(name string, value int64, tags []string, rate float64) error
	Incr(name string, tags []string, rate float64) error
	Histogram(name string, value float64, tags []string, rate float64) error
	TimeInMilliseconds(name string, value float64, tags []string, rate float64) error
	Timing(name string, value time.Duration, tags []string, rate float64) error
}

// Ensure takes a statsd client and wraps it in such a way that it is
// safe to store in a struct if it should be nil. Otherwise returns
// the Client unchanged.
func Ensure(cl Client) Client {
	if cl == nil {
		return &ScopedClient{}
	}
	return cl
}

// ScopedClient appends a fixed set of tags to everything it reports. A nil
// *ScopedClient, or one without an inner client, silently drops everything.
type ScopedClient struct {
	client *statsd.Client

	addTags []string
}

var _ Client = &ScopedClient{}

func NewClient(inner *statsd.Client, addTags []string) *ScopedClient {
	return &ScopedClient{
		client:  inner,
		addTags: addTags,
	}
}

// With returns a client sharing the same connection that additionally tags
// every metric with tags.
func (s *ScopedClient) With(tags ...string) *ScopedClient {
	if s == nil {
		return nil
	}
	addTags := make([]string, 0, len(s.addTags)+len(tags))
	addTags = append(addTags, s.addTags...)
	addTags = append(addTags, tags...)
	return &ScopedClient{client: s.client, addTags: addTags}
}

// Tags returns the tags added to every metric.
func (s *ScopedClient) Tags() []string {
	if s == nil {
		return nil
	}
	return s.addTags
}

func (s *ScopedClient) tags(tags []string) []string {
	if len(s.addTags) == 0 {
		return tags
	}
	merged := make([]string, 0, len(tags)+len(s.addTags))
	merged = append(merged, tags...)
	return append(merged, s.addTags...)
}

func (s *ScopedClient) Gauge(name string, value float64, tags []string, rate float64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Gauge(name, value, s.tags(tags), rate)
}

func (s *ScopedClient) Count(name string, value int64, tags []string, rate float64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Count(name, value, s.tags(tags), rate)
}

func (s *ScopedClient) Incr(name string, tags []string, rate float64) error {
	return s.Count(name, 1, tags, rate)
}

func (s *ScopedClient) TimeInMilliseconds(name string, value float64, tags []string, rate float64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.TimeInMilliseconds(name, value, s.tags(tags), rate)
}

func (s *ScopedClient) Timing(name string, value time.Duration, tags []string, rate float64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Timing(name, value, s.tags(tags), rate)
}

func (s *ScopedClient) Histogram(name string, value float64, tags []string, rate float64) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Histogram(name, value, s.tags(tags), rate)
}
