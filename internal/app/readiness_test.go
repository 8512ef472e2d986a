package app

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redismock "github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestBuildReadinessChecks_Redismock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	mock.ExpectPing().SetVal("PONG")
	mock.ExpectPing().SetErr(errors.New("connection refused"))

	checks := BuildReadinessChecks(nil, client, nil)
	if err := checks.Redis(context.Background()); err != nil {
		t.Fatalf("redis check: %v", err)
	}
	if err := checks.Redis(context.Background()); err == nil {
		t.Fatalf("expected redis failure on second ping")
	}
	if err := checks.DB(context.Background()); err == nil {
		t.Fatalf("expected db not configured error")
	}
	if checks.Kafka != nil {
		t.Fatalf("kafka check should be skipped when events are disabled")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("redis expectations: %v", err)
	}
}

func TestBuildReadinessChecks_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	kafkaErr := errors.New("no brokers")
	checks := BuildReadinessChecks(
		pingFunc(func(context.Context) error { return nil }),
		rdb,
		pingFunc(func(context.Context) error { return kafkaErr }),
	)
	if err := checks.DB(context.Background()); err != nil {
		t.Fatalf("db check: %v", err)
	}
	if err := checks.Redis(context.Background()); err != nil {
		t.Fatalf("redis check: %v", err)
	}
	if err := checks.Kafka(context.Background()); !errors.Is(err, kafkaErr) {
		t.Fatalf("kafka check: got %v", err)
	}

	mr.Close()
	if err := checks.Redis(context.Background()); err == nil {
		t.Fatalf("expected redis failure after shutdown")
	}
}
