package redisstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/evaluator-server/internal/config"
	"github.com/janhq/evaluator-server/internal/domain/inference"
	"github.com/janhq/evaluator-server/internal/infrastructure/metrics"
	"github.com/janhq/evaluator-server/pkg/observability/worker"
)

// emptyStreamID sorts before every id redis can assign.
const emptyStreamID = "0-0"

// ChunkHandler applies decoded result records. It is only called from the consumer goroutine.
type ChunkHandler interface {
	Handle(ctx context.Context, chunk inference.Chunk) error
	Expire(ctx context.Context, now time.Time) int
}

// ConsumerConfig describes where and how the result stream is read.
type ConsumerConfig struct {
	Stream      string
	OffsetKey   string
	StartOffset string
	BatchSize   int64
	Block       time.Duration
	Cooldown    time.Duration
	LockTTL     time.Duration
}

// Consumer reads the result stream from a persisted offset, hands every record to the
// handler and then acknowledges it by saving the offset and deleting the record.
type Consumer struct {
	client       StreamClient
	locker       Locker
	handler      ChunkHandler
	instrumenter *worker.WorkerInstrumenter
	cfg          ConsumerConfig
	now          func() time.Time
	log          zerolog.Logger
}

// NewConsumer creates a consumer. A nil instrumenter records nothing.
func NewConsumer(client StreamClient, locker Locker, handler ChunkHandler, instrumenter *worker.WorkerInstrumenter, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if instrumenter == nil {
		instrumenter = worker.NewNoopInstrumenter()
	}
	return &Consumer{
		client:       client,
		locker:       locker,
		handler:      handler,
		instrumenter: instrumenter,
		cfg:          cfg,
		now:          time.Now,
		log:          log.With().Str("component", "stream-consumer").Str("stream", cfg.Stream).Logger(),
	}
}

// Run blocks until ctx is cancelled. It fails fast when the broker is unreachable at startup;
// later broker errors are retried after the cooldown.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("result stream broker unreachable: %w", err)
	}

	for {
		acquired, err := c.acquire(ctx)
		if err != nil || !acquired {
			return nil
		}

		err = c.consume(ctx)
		c.release()
		if ctx.Err() != nil {
			return nil
		}
		c.log.Warn().Err(err).Msg("consumer stopped, waiting for the lock again")
		metrics.ConsumerErrors.WithLabelValues("lock").Inc()
	}
}

// acquire waits for the single-consumer lock. It returns false when ctx ends first.
func (c *Consumer) acquire(ctx context.Context) (bool, error) {
	standby := false
	for {
		ok, err := c.locker.TryAcquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.log.Error().Err(err).Msg("failed to acquire consumer lock")
			metrics.ConsumerErrors.WithLabelValues("lock").Inc()
		}
		if ok {
			c.log.Info().Msg("consumer lock acquired")
			return true, nil
		}
		if !standby && err == nil {
			c.log.Info().Msg("another consumer holds the lock, standing by")
			standby = true
		}
		if !c.sleep(ctx, c.lockRetryInterval()) {
			return false, ctx.Err()
		}
	}
}

func (c *Consumer) release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.locker.Release(ctx); err != nil {
		c.log.Warn().Err(err).Msg("failed to release consumer lock")
	}
}

// consume runs the read loop while the lock is held. It only returns when ctx ends or the
// lock is lost.
func (c *Consumer) consume(ctx context.Context) error {
	lastID, err := c.loadOffset(ctx)
	for err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Error().Err(err).Msg("failed to load stream offset")
		metrics.ConsumerErrors.WithLabelValues("offset").Inc()
		if !c.sleep(ctx, c.cfg.Cooldown) {
			return ctx.Err()
		}
		lastID, err = c.loadOffset(ctx)
	}
	c.log.Info().Str("offset", lastID).Msg("consuming result stream")

	lastExtend := c.now()
	lastSweep := c.now()
	for ctx.Err() == nil {
		if c.now().Sub(lastExtend) >= c.lockRetryInterval() {
			if err := c.locker.Extend(ctx); err != nil {
				return err
			}
			lastExtend = c.now()
		}
		if c.now().Sub(lastSweep) >= c.cfg.Block {
			if n := c.handler.Expire(ctx, c.now()); n > 0 {
				c.log.Warn().Int("sessions", n).Msg("expired idle stream sessions")
			}
			lastSweep = c.now()
		}

		streams, err := c.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{c.cfg.Stream, lastID},
			Count:   c.cfg.BatchSize,
			Block:   c.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.cooldown(ctx, "read", err)
			continue
		}

		lastID = c.processBatch(ctx, streams, lastID)
	}
	return ctx.Err()
}

// processBatch handles records in order and returns the last acknowledged id. It stops at
// the first failure so the failed record is read again from the returned id.
func (c *Consumer) processBatch(ctx context.Context, streams []redis.XStream, lastID string) string {
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := c.process(ctx, msg); err != nil {
				c.cooldown(ctx, "handle", err)
				return lastID
			}
			if err := c.ack(ctx, msg.ID); err != nil {
				c.cooldown(ctx, "ack", err)
				return lastID
			}
			lastID = msg.ID
		}
	}
	return lastID
}

// process decodes and handles one record. Malformed records are reported and treated as
// handled so they get acknowledged.
func (c *Consumer) process(ctx context.Context, msg redis.XMessage) error {
	chunk, err := DecodeChunk(msg)
	if err != nil {
		c.log.Warn().Err(err).Str("stream_id", msg.ID).Msg("skipping malformed result record")
		metrics.MalformedRecords.Inc()
		return nil
	}

	err = c.instrumenter.InstrumentJob(ctx, "result_chunk", chunk.CorrelationID, func(ctx context.Context) error {
		return c.handler.Handle(ctx, chunk)
	})
	if err != nil {
		return err
	}
	metrics.ChunksConsumed.WithLabelValues(string(chunk.Status)).Inc()
	return nil
}

func (c *Consumer) ack(ctx context.Context, id string) error {
	if err := c.client.Set(ctx, c.cfg.OffsetKey, id, 0).Err(); err != nil {
		return fmt.Errorf("persist offset %s: %w", id, err)
	}
	if err := c.client.XDel(ctx, c.cfg.Stream, id).Err(); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

func (c *Consumer) loadOffset(ctx context.Context) (string, error) {
	offset, err := c.client.Get(ctx, c.cfg.OffsetKey).Result()
	if errors.Is(err, redis.Nil) || (err == nil && offset == "") {
		return c.startOffset(ctx)
	}
	if err != nil {
		return "", err
	}
	return offset, nil
}

// startOffset pins "$" to the newest record id so records appended between two blocking
// reads are not skipped.
func (c *Consumer) startOffset(ctx context.Context) (string, error) {
	if c.cfg.StartOffset != config.StartOffsetLatest {
		return c.cfg.StartOffset, nil
	}
	newest, err := c.client.XRevRangeN(ctx, c.cfg.Stream, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("resolve latest stream id: %w", err)
	}
	if len(newest) == 0 {
		return emptyStreamID, nil
	}
	return newest[0].ID, nil
}

func (c *Consumer) cooldown(ctx context.Context, stage string, err error) {
	c.log.Error().Err(err).Str("stage", stage).Dur("cooldown", c.cfg.Cooldown).Msg("result stream error")
	metrics.ConsumerErrors.WithLabelValues(stage).Inc()
	c.sleep(ctx, c.cfg.Cooldown)
}

func (c *Consumer) lockRetryInterval() time.Duration {
	return c.cfg.LockTTL / 3
}

// sleep waits d and reports false if ctx ended first.
func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
