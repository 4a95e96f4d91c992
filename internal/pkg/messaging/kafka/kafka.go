// Package kafka implements the messaging interfaces on franz-go. Records are
// keyed by product key so every event of a product lands on one partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/jcmexdev/product-catalog/internal/catalog"
	"github.com/jcmexdev/product-catalog/internal/pkg/messaging"
)

type Config struct {
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
	// Delay between attempts at a record whose handler failed.
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
}

func (c *Config) withDefaults() {
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 100 * time.Millisecond
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = 5 * time.Second
	}
}

func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	for _, b := range c.Brokers {
		if strings.TrimSpace(b) == "" {
			return errors.New("kafka.brokers contains an empty address")
		}
	}
	return nil
}

func (c Config) baseOpts() []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(c.Brokers...)}
	if c.ClientID != "" {
		opts = append(opts, kgo.ClientID(c.ClientID))
	}
	return opts
}

type Publisher struct {
	client  *kgo.Client
	produce func(context.Context, *kgo.Record) error
}

var _ messaging.Publisher = (*Publisher)(nil)

func NewPublisher(cfg Config, opts ...kgo.Opt) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kopts := append(cfg.baseOpts(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.AllowAutoTopicCreation(),
	)
	kopts = append(kopts, opts...)
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka producer: %w", err)
	}
	return &Publisher{
		client: cl,
		produce: func(ctx context.Context, r *kgo.Record) error {
			return cl.ProduceSync(ctx, r).FirstErr()
		},
	}, nil
}

func (p *Publisher) Publish(ctx context.Context, topic string, ev messaging.Event) error {
	rec, err := newRecord(ctx, topic, ev)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	if err := p.produce(ctx, rec); err != nil {
		return fmt.Errorf("%w: kafka %s: %v", catalog.ErrPublishFailure, topic, err)
	}
	return nil
}

func newRecord(ctx context.Context, topic string, ev messaging.Event) (*kgo.Record, error) {
	body, err := ev.Marshal()
	if err != nil {
		return nil, err
	}
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(ev.Key),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "eventType", Value: []byte(ev.Type)},
		},
	}
	messaging.InjectTrace(ctx, func(k, v string) {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	})
	return rec, nil
}

func (p *Publisher) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

type Subscriber struct {
	cfg    Config
	opts   []kgo.Opt
	logger *slog.Logger

	mu      sync.Mutex
	clients []*kgo.Client
}

var _ messaging.Subscriber = (*Subscriber)(nil)

func NewSubscriber(cfg Config, logger *slog.Logger, opts ...kgo.Opt) (*Subscriber, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{cfg: cfg, opts: opts, logger: logger}, nil
}

// Subscribe joins group on topic and applies records one partition at a
// time. Offsets are marked only after the handler returned nil or a
// permanent error, and committed once per poll.
func (s *Subscriber) Subscribe(ctx context.Context, topic, group string, h messaging.Handler) error {
	kopts := append(s.cfg.baseOpts(),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	kopts = append(kopts, s.opts...)
	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return fmt.Errorf("new kafka consumer: %w", err)
	}
	s.mu.Lock()
	s.clients = append(s.clients, cl)
	s.mu.Unlock()
	defer cl.Close()

	c := &consumer{
		handler:    h,
		logger:     s.logger.With("topic", topic, "group", group),
		markCommit: func(r *kgo.Record) { cl.MarkCommitRecords(r) },
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = s.cfg.RetryInitialInterval
			b.MaxInterval = s.cfg.RetryMaxInterval
			b.MaxElapsedTime = 0
			return b
		},
	}

	for {
		fetches := cl.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(t string, p int32, err error) {
			c.logger.Warn("fetch error", "partition", p, "error", err)
		})

		var perr error
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, rec := range p.Records {
				if perr != nil {
					return
				}
				perr = c.process(ctx, rec)
			}
		})
		if err := cl.CommitMarkedOffsets(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("commit offsets", "error", err)
		}
		cl.AllowRebalance()
		if perr != nil {
			return perr
		}
	}
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cl := range s.clients {
		cl.Close()
	}
	s.clients = nil
	return nil
}

type consumer struct {
	handler    messaging.Handler
	logger     *slog.Logger
	markCommit func(*kgo.Record)
	newBackOff func() backoff.BackOff
}

// process retries the handler in place so later records of the partition
// never overtake a failed one. It returns an error only when ctx ends.
func (c *consumer) process(ctx context.Context, rec *kgo.Record) error {
	ev, err := messaging.UnmarshalEvent(rec.Value)
	if err != nil {
		c.logger.Error("dropping undecodable record", "partition", rec.Partition, "offset", rec.Offset, "error", err)
		c.markCommit(rec)
		return nil
	}

	hctx := messaging.ExtractTrace(ctx, headerMap(rec.Headers))
	op := func() error {
		err := c.handler(hctx, ev)
		if errors.Is(err, messaging.ErrEventProcessing) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("event handler failed, retrying", "event_id", ev.ID, "key", ev.Key, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Error("dropping unprocessable event", "event_id", ev.ID, "key", ev.Key, "error", err)
	}
	c.markCommit(rec)
	return nil
}

func headerMap(hs []kgo.RecordHeader) map[string]string {
	m := make(map[string]string, len(hs))
	for _, h := range hs {
		m[h.Key] = string(h.Value)
	}
	return m
}
