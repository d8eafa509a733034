package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	almanac "github.com/xraph/almanac"
	"github.com/xraph/almanac/event"
	"github.com/xraph/almanac/ledger"
	"github.com/xraph/almanac/policy"
)

// claimScript writes the record and its time index entry as one atomic
// step. SETNX decides the winner; the ZADD must land with it so a crash
// between the two cannot leave a claimed record invisible to Prune and
// CountRecords.
var claimScript = goredis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 1 then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`)

// TryClaim performs the atomic claim on the composite dedup key. Redis
// serializes script execution, so exactly one of any number of concurrent
// claimants sees true; everyone else observes the existing key.
func (s *Store) TryClaim(ctx context.Context, rec *ledger.Record) (bool, error) {
	raw, err := marshalEntity(rec)
	if err != nil {
		return false, err
	}

	won, err := claimScript.Run(ctx, s.rdb,
		[]string{prefixLedger + rec.Key(), zLedgerOccur},
		raw, scoreFromTime(rec.OccursAt), rec.Key(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("almanac/redis: try claim: %w", err)
	}
	return won == 1, nil
}

func (s *Store) SetChannelsSent(ctx context.Context, evtID event.ID, userID string, leadWindowDays int, channels []policy.Channel) error {
	rec, err := s.GetRecord(ctx, evtID, userID, leadWindowDays)
	if err != nil {
		return err
	}

	rec.ChannelsSent = channels
	rec.UpdatedAt = time.Now().UTC()

	if err := s.setEntity(ctx, prefixLedger+rec.Key(), rec); err != nil {
		return fmt.Errorf("almanac/redis: set channels sent: %w", err)
	}
	return nil
}

func (s *Store) GetRecord(ctx context.Context, evtID event.ID, userID string, leadWindowDays int) (*ledger.Record, error) {
	var rec ledger.Record
	key := ledger.Key(evtID, userID, leadWindowDays)
	if err := s.getEntity(ctx, prefixLedger+key, &rec); err != nil {
		if isNotFound(err) {
			return nil, almanac.ErrRecordNotFound
		}
		return nil, fmt.Errorf("almanac/redis: get record: %w", err)
	}
	return &rec, nil
}

func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	count, err := s.rdb.ZCard(ctx, zLedgerOccur).Result()
	if err != nil {
		return 0, fmt.Errorf("almanac/redis: count records: %w", err)
	}
	return count, nil
}

// Prune removes records scored before the cutoff. The index is keyed by
// occurrence time, so future-event records are out of range by construction.
func (s *Store) Prune(ctx context.Context, occurredBefore time.Time) (int64, error) {
	cutoff := strconv.FormatFloat(scoreFromTime(occurredBefore), 'f', -1, 64)
	keys, err := s.rdb.ZRangeByScore(ctx, zLedgerOccur, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("almanac/redis: prune scan: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := s.rdb.Pipeline()
	for _, k := range keys {
		pipe.Del(ctx, prefixLedger+k)
		pipe.ZRem(ctx, zLedgerOccur, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("almanac/redis: prune: %w", err)
	}
	return int64(len(keys)), nil
}
