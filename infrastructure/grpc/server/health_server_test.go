package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"chat-rooms/infrastructure/grpc/client"
	"chat-rooms/infrastructure/grpc/server"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func startHealth(t *testing.T, check server.Check, interval time.Duration) *grpc.ClientConn {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.NewHealthServer(check, interval, log)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Serve(listener) }()
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHealthServer_ServingWhileCheckSucceeds(t *testing.T) {
	req := require.New(t)
	conn := startHealth(t, func() error { return nil }, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req.NoError(client.WaitForHealth(ctx, conn, server.ServiceName, nil))
}

func TestHealthServer_TransitionsToServing(t *testing.T) {
	req := require.New(t)

	// Given a store that only opens after a while
	var ready atomic.Bool
	conn := startHealth(t, func() error {
		if !ready.Load() {
			return errors.New("store closed")
		}
		return nil
	}, 20*time.Millisecond)

	go func() {
		time.Sleep(100 * time.Millisecond)
		ready.Store(true)
	}()

	// Then the waiter eventually sees SERVING
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req.NoError(client.WaitForHealth(ctx, conn, "", nil))
}

func TestHealthServer_NotServingWhenCheckFails(t *testing.T) {
	req := require.New(t)
	conn := startHealth(t, func() error { return errors.New("store closed") }, time.Hour)

	response, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	req.NoError(err)
	req.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, response.GetStatus())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req.Error(client.WaitForHealth(ctx, conn, "", nil))
}
