package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/domain"
)

type StreamsConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
	Logger   *zap.Logger
}

// StreamsNotifier publishes job-created events to a Redis stream and, on the
// consuming side, turns them into worker wake signals so pickup latency drops
// below the poll interval.
type StreamsNotifier struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *zap.Logger
	wake     chan struct{}
}

func NewStreamsNotifier(ctx context.Context, cfg StreamsConfig) (*StreamsNotifier, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "tender_jobs"
	}
	if cfg.Group == "" {
		cfg.Group = "tender_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	notifier := &StreamsNotifier{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		logger:   cfg.Logger,
		wake:     make(chan struct{}, 1),
	}
	if err := notifier.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return notifier, nil
}

func (n *StreamsNotifier) Close() error {
	return n.client.Close()
}

func (n *StreamsNotifier) JobCreated(ctx context.Context, jobID string, jobType domain.JobType) error {
	_, err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		Values: map[string]any{
			"job_id":     jobID,
			"type":       string(jobType),
			"created_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish job created: %w", err)
	}
	return nil
}

// Wake delivers at most one buffered signal; coalescing is fine because a
// single tick drains one job and the poller covers the rest.
func (n *StreamsNotifier) Wake() <-chan struct{} {
	return n.wake
}

// Run consumes the stream until the context is cancelled.
func (n *StreamsNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := n.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    n.group,
			Consumer: n.consumer,
			Streams:  []string{n.stream, ">"},
			Count:    16,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			n.logger.Warn("stream read failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				if err := n.client.XAck(ctx, n.stream, n.group, item.ID).Err(); err != nil {
					n.logger.Warn("stream ack failed", zap.String("stream_id", item.ID), zap.Error(err))
				}
				_ = n.client.XDel(ctx, n.stream, item.ID).Err()
			}
		}

		select {
		case n.wake <- struct{}{}:
		default:
		}
	}
}

func (n *StreamsNotifier) ensureGroup(ctx context.Context) error {
	err := n.client.XGroupCreateMkStream(ctx, n.stream, n.group, "$").Err()
	if err == nil || strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}
