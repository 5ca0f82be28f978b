package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"docworker/core/config"
	apperrors "docworker/core/errors"
	"docworker/core/jobs"
	"docworker/core/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const testList = "document_jobs"

func startRedis(t *testing.T) (*miniredis.Miniredis, config.ConnectionParameters) {
	t.Helper()
	s := miniredis.RunT(t)
	s.RequireUserAuth("worker", "s3cret")
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)
	return s, config.ConnectionParameters{
		Address:  s.Host(),
		Port:     port,
		Username: "worker",
		Password: "s3cret",
	}
}

func TestConnectAndPopFIFO(t *testing.T) {
	_, params := startRedis(t)
	ctx := context.Background()

	conn, err := NewManager(params).Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Ping(ctx))
	require.NoError(t, conn.Push(ctx, testList, `{"JobID":"1"}`))
	require.NoError(t, conn.Push(ctx, testList, `{"JobID":"2"}`))

	item, ok, err := conn.Pop(ctx, testList, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"JobID":"1"}`, item)

	item, ok, err = conn.Pop(ctx, testList, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"JobID":"2"}`, item)
}

func TestPopTimesOutOnEmptyList(t *testing.T) {
	_, params := startRedis(t)
	ctx := context.Background()

	conn, err := NewManager(params).Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	start := time.Now()
	item, ok, err := conn.Pop(ctx, testList, time.Second)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, item)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	_, params := startRedis(t)
	params.Password = "wrong"

	before := testutil.ToFloat64(metrics.ConnectAttempts.WithLabelValues("failed"))
	conn, err := NewManager(params).Connect(context.Background())
	require.Nil(t, conn)
	require.Error(t, err)
	require.True(t, errors.Is(err, apperrors.ErrConnect), "got %v", err)
	require.Equal(t, before+1, testutil.ToFloat64(metrics.ConnectAttempts.WithLabelValues("failed")))
}

func TestConnectUnreachable(t *testing.T) {
	s, params := startRedis(t)
	s.Close()

	conn, err := NewManager(params, WithDialTimeout(500*time.Millisecond)).Connect(context.Background())
	require.Nil(t, conn)
	require.True(t, errors.Is(err, apperrors.ErrConnect), "got %v", err)

	// Repeated calls are independent.
	_, err = NewManager(params, WithDialTimeout(500*time.Millisecond)).Connect(context.Background())
	require.True(t, errors.Is(err, apperrors.ErrConnect), "got %v", err)
}

func TestPopAfterServerLossIsConnectionLost(t *testing.T) {
	s, params := startRedis(t)
	ctx := context.Background()

	conn, err := NewManager(params).Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	s.Close()
	_, ok, err := conn.Pop(ctx, testList, time.Second)
	require.False(t, ok)
	require.True(t, errors.Is(err, apperrors.ErrConnectionLost), "got %v", err)
	require.False(t, errors.Is(err, apperrors.ErrUnexpectedReply))
}

func TestPopWrongTypeIsUnexpectedReply(t *testing.T) {
	s, params := startRedis(t)
	ctx := context.Background()
	require.NoError(t, s.Set(testList, "not a list"))

	conn, err := NewManager(params).Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.Pop(ctx, testList, time.Second)
	require.True(t, errors.Is(err, apperrors.ErrUnexpectedReply), "got %v", err)
	require.False(t, errors.Is(err, apperrors.ErrConnectionLost))
}

func TestListEnqueuer(t *testing.T) {
	s, params := startRedis(t)
	ctx := context.Background()

	conn, err := NewManager(params).Connect(ctx)
	require.NoError(t, err)
	defer conn.Close()

	job := jobs.NewDocumentJob("u1", "c1", "a.pdf", 1024, "application/pdf")
	require.NoError(t, NewListEnqueuer(conn, testList).Enqueue(ctx, job))

	items, err := s.List(testList)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(items[0]), &stored))
	require.Equal(t, *job.JobID, stored["JobID"])
	require.Equal(t, "document_job", stored["JobType"])
}

func TestParseServerVersion(t *testing.T) {
	info := "# Server\r\nredis_version:7.2.4\r\nredis_git_sha1:00000000\r\n"
	v, err := parseServerVersion(info)
	require.NoError(t, err)
	require.Equal(t, "7.2.4", v.String())
	require.False(t, v.LessThan(minServerVersion))

	old, err := parseServerVersion("redis_version:5.0.14\n")
	require.NoError(t, err)
	require.True(t, old.LessThan(minServerVersion))

	_, err = parseServerVersion("# Server\r\nuptime_in_seconds:10\r\n")
	require.Error(t, err)
}
