package stats

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Recorder keeps best-effort ingest counters in Redis.
//
// Counting must never interfere with webhook processing: every method
// tolerates a nil client (counters disabled) and swallows Redis errors after
// logging them at debug level.

type Recorder struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRecorder(rdb *redis.Client, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{rdb: rdb, log: log}
}

// Counter keys. Plain INCR counters, no TTL; totals since first deploy.
const (
	KeyMessagesReceived = "stats:messages_received"
	KeyCallsReceived    = "stats:calls_received"
	KeyStatusesReceived = "stats:statuses_received"
	KeyMessagesSent     = "stats:messages_sent"
	KeySendFailures     = "stats:send_failures"
)

var allKeys = []string{
	KeyMessagesReceived,
	KeyCallsReceived,
	KeyStatusesReceived,
	KeyMessagesSent,
	KeySendFailures,
}

func (r *Recorder) Incr(ctx context.Context, key string) {
	if r == nil || r.rdb == nil {
		return
	}
	if err := r.rdb.Incr(ctx, key).Err(); err != nil {
		r.log.Debug("stats incr failed", "key", key, "err", err)
	}
}

// Snapshot returns all counters. Missing keys read as zero.
func (r *Recorder) Snapshot(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(allKeys))
	for _, k := range allKeys {
		out[k] = 0
	}
	if r == nil || r.rdb == nil {
		return out, nil
	}

	vals, err := r.rdb.MGet(ctx, allKeys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				out[allKeys[i]] = n
			}
		}
	}
	return out, nil
}
