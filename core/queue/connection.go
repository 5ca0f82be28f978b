// Package queue owns the Redis connection used to consume the job list: it
// opens and verifies connections and classifies failures into the error kinds
// the consumption loop switches on.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "docworker/core/errors"

	"github.com/redis/go-redis/v9"
)

// Connection is a live handle to the queue backend.
type Connection interface {
	// Ping performs a liveness round-trip.
	Ping(ctx context.Context) error
	// Pop removes the head of list, waiting up to timeout for one to appear.
	// ok is false when the timeout elapsed with the list still empty.
	Pop(ctx context.Context, list string, timeout time.Duration) (item string, ok bool, err error)
	// Push appends payload to the tail of list.
	Push(ctx context.Context, list, payload string) error
	// Close releases the underlying network resources.
	Close() error
}

// Conn is the go-redis backed Connection returned by Manager.Connect.
type Conn struct {
	client *redis.Client
}

func (c *Conn) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Conn) Pop(ctx context.Context, list string, timeout time.Duration) (string, bool, error) {
	res, err := c.client.BLPop(ctx, timeout, list).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	// BLPOP replies with [key, value].
	if len(res) != 2 {
		return "", false, apperrors.Kind(apperrors.ErrUnexpectedReply, fmt.Errorf("BLPOP returned %d elements", len(res)))
	}
	return res[1], true, nil
}

func (c *Conn) Push(ctx context.Context, list, payload string) error {
	if err := c.client.RPush(ctx, list, payload).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Conn) Close() error {
	return c.client.Close()
}

// classify splits server replies (WRONGTYPE, NOAUTH, ...) from transport failures.
func classify(err error) error {
	var reply redis.Error
	if errors.As(err, &reply) {
		return apperrors.Kind(apperrors.ErrUnexpectedReply, err)
	}
	return apperrors.Kind(apperrors.ErrConnectionLost, err)
}
