package channel

import (
	"context"
	"errors"
	"time"

	"github.com/absmach/fedtree/job"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "fedtree:vars"
	defaultPoll      = time.Second
)

type RedisOptions struct {
	KeyPrefix string
	// TTL bounds how long an unconsumed variable is kept. Zero keeps it forever.
	TTL time.Duration
	// Poll is the BLPOP timeout between context checks.
	Poll time.Duration
}

type redisChannel struct {
	client *redis.Client
	jobID  string
	self   string
	opts   RedisOptions
}

// NewRedis stores each variable in a list per recipient. LPOP removes it, so a
// value is delivered at most once.
func NewRedis(client *redis.Client, jobID, self string, opts RedisOptions) Channel {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	if opts.Poll <= 0 {
		opts.Poll = defaultPoll
	}

	return &redisChannel{
		client: client,
		jobID:  jobID,
		self:   self,
		opts:   opts,
	}
}

func (c *redisChannel) key(name, from, to string) string {
	return c.opts.KeyPrefix + ":" + segment(c.jobID) + ":" + name + ":" + segment(from) + ":" + segment(to)
}

func (c *redisChannel) Publish(ctx context.Context, name string, value []byte, to []job.Participant) error {
	pipe := c.client.TxPipeline()
	for _, p := range to {
		key := c.key(name, c.self, p.UserID)
		pipe.RPush(ctx, key, value)
		if c.opts.TTL > 0 {
			pipe.Expire(ctx, key, c.opts.TTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("publish", name, err)
	}

	return nil
}

func (c *redisChannel) Receive(ctx context.Context, name string, from job.Participant) ([]byte, error) {
	key := c.key(name, from.UserID, c.self)
	for {
		if err := ctx.Err(); err != nil {
			return nil, wrap("receive", name, err)
		}

		res, err := c.client.BLPop(ctx, c.opts.Poll, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil, wrap("receive", name, ctx.Err())
			}

			return nil, wrap("receive", name, err)
		}

		// BLPOP replies with [key, value].
		return []byte(res[1]), nil
	}
}
