package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/manhunt/internal/manhunt"
)

// RedisLocations keeps last-known positions in Redis hashes, one key per
// person. Used instead of Locations when REDIS_URL is configured.
type RedisLocations struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLocations(rdb *redis.Client) *RedisLocations {
	return &RedisLocations{rdb: rdb, prefix: "manhunt:location:"}
}

func (s *RedisLocations) key(p manhunt.PersonID) string {
	return s.prefix + string(p)
}

func (s *RedisLocations) Get(ctx context.Context, p manhunt.PersonID) (manhunt.Location, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key(p)).Result()
	if err != nil {
		return manhunt.Location{}, err
	}
	if len(fields) == 0 {
		return manhunt.Location{}, manhunt.ErrNotFound
	}

	lat, err := strconv.ParseFloat(fields["lat"], 64)
	if err != nil {
		return manhunt.Location{}, fmt.Errorf("location of %s: bad latitude: %w", p, err)
	}
	lon, err := strconv.ParseFloat(fields["lon"], 64)
	if err != nil {
		return manhunt.Location{}, fmt.Errorf("location of %s: bad longitude: %w", p, err)
	}
	updated, err := strconv.ParseInt(fields["updated_at"], 10, 64)
	if err != nil {
		return manhunt.Location{}, fmt.Errorf("location of %s: bad timestamp: %w", p, err)
	}
	return manhunt.Location{PersonID: p, Latitude: lat, Longitude: lon, UpdatedAt: fromMillis(updated)}, nil
}

func (s *RedisLocations) Upsert(ctx context.Context, loc manhunt.Location) error {
	return s.rdb.HSet(ctx, s.key(loc.PersonID),
		"lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		"lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
		"updated_at", strconv.FormatInt(toMillis(loc.UpdatedAt), 10),
	).Err()
}

func (s *RedisLocations) Delete(ctx context.Context, p manhunt.PersonID) error {
	return s.rdb.Del(ctx, s.key(p)).Err()
}

// OpenRedis connects to rawURL and pings it.
func OpenRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
