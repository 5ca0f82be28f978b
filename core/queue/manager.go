package queue

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"docworker/core/config"
	apperrors "docworker/core/errors"
	"docworker/core/logger"
	"docworker/core/metrics"

	"github.com/Masterminds/semver/v3"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// minServerVersion is the first Redis release with ACL usernames.
var minServerVersion = semver.MustParse("6.0.0")

const defaultDialTimeout = 5 * time.Second

// Manager opens verified connections to the queue backend. It holds no
// connection itself; every Connect call is independent and a failed call
// leaves nothing behind, so callers may retry it freely.
type Manager struct {
	params      config.ConnectionParameters
	dialTimeout time.Duration
}

// Option customises a Manager.
type Option func(*Manager)

// WithDialTimeout bounds how long opening the TCP connection may take.
func WithDialTimeout(d time.Duration) Option {
	return func(m *Manager) { m.dialTimeout = d }
}

// NewManager returns a Manager for the given connection parameters.
func NewManager(params config.ConnectionParameters, opts ...Option) *Manager {
	m := &Manager{params: params, dialTimeout: defaultDialTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens a connection and pings it. It never returns a connection that
// has not answered the ping; failures wrap apperrors.ErrConnect.
func (m *Manager) Connect(ctx context.Context) (Connection, error) {
	ctx = logger.WithComponentName(ctx, "queue")
	tracer := otel.Tracer("docworker-queue")
	ctx, span := tracer.Start(ctx, "queue.Connect", trace.WithAttributes(attribute.String("redis.addr", m.params.Addr())))
	defer span.End()

	client := redis.NewClient(&redis.Options{
		Addr:        m.params.Addr(),
		Username:    m.params.Username,
		Password:    m.params.Password,
		DB:          0,
		Protocol:    2,
		DialTimeout: m.dialTimeout,
		// Reconnection is the consumption loop's decision, not the client's.
		MaxRetries:      -1,
		DisableIdentity: true,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ConnectAttempts.WithLabelValues("failed").Inc()
		logger.Error(ctx, "Unable to connect to Redis", zap.String("addr", m.params.Addr()), zap.Error(err))
		return nil, apperrors.Kind(apperrors.ErrConnect, fmt.Errorf("connect %s: %w", m.params.Addr(), err))
	}

	version := serverVersion(ctx, client)
	metrics.ConnectAttempts.WithLabelValues("success").Inc()
	logger.Info(ctx, "Redis client initialized",
		zap.String("addr", m.params.Addr()),
		zap.String("username", m.params.Username),
		zap.String("server_version", versionString(version)))
	if version != nil && version.LessThan(minServerVersion) {
		logger.Warn(ctx, "Redis server predates ACL usernames; authentication may not behave as configured",
			zap.String("server_version", version.String()),
			zap.String("minimum", minServerVersion.String()))
	}
	return &Conn{client: client}, nil
}

// serverVersion reads the server version; it returns nil when the server does
// not expose one, which is not a connect failure.
func serverVersion(ctx context.Context, client *redis.Client) *semver.Version {
	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		logger.Debug(ctx, "Could not read Redis server info", zap.Error(err))
		return nil
	}
	v, err := parseServerVersion(info)
	if err != nil {
		logger.Debug(ctx, "Could not parse Redis server version", zap.Error(err))
		return nil
	}
	return v
}

func parseServerVersion(info string) (*semver.Version, error) {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if raw, ok := strings.CutPrefix(line, "redis_version:"); ok {
			return semver.NewVersion(raw)
		}
	}
	return nil, fmt.Errorf("redis_version not found in INFO reply")
}

func versionString(v *semver.Version) string {
	if v == nil {
		return "unknown"
	}
	return v.String()
}
