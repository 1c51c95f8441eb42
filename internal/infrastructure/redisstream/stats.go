package redisstream

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Stats is a point-in-time view of both streams and the consumer offset.
type Stats struct {
	RequestStream  string `json:"request_stream" yaml:"request_stream"`
	RequestLength  int64  `json:"request_length" yaml:"request_length"`
	ResultStream   string `json:"result_stream" yaml:"result_stream"`
	ResultLength   int64  `json:"result_length" yaml:"result_length"`
	ConsumerOffset string `json:"consumer_offset" yaml:"consumer_offset"`
}

// Inspect reads stream lengths and the persisted offset. A missing offset is reported empty.
func Inspect(ctx context.Context, client StreamClient, requestStream, resultStream, offsetKey string) (*Stats, error) {
	stats := &Stats{RequestStream: requestStream, ResultStream: resultStream}

	var err error
	if stats.RequestLength, err = client.XLen(ctx, requestStream).Result(); err != nil {
		return nil, err
	}
	if stats.ResultLength, err = client.XLen(ctx, resultStream).Result(); err != nil {
		return nil, err
	}
	offset, err := client.Get(ctx, offsetKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	stats.ConsumerOffset = offset
	return stats, nil
}
