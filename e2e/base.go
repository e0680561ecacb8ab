package e2e

import (
	"chat-rooms/auth"
	"chat-rooms/client"
	"chat-rooms/domain"
	grpcclient "chat-rooms/infrastructure/grpc/client"
	grpcserver "chat-rooms/infrastructure/grpc/server"
	httpserver "chat-rooms/infrastructure/http/server"
	"chat-rooms/infrastructure/search"
	"chat-rooms/infrastructure/storage"
	"chat-rooms/infrastructure/ws"
	"chat-rooms/runtime"
	"chat-rooms/runtime/workers"
	"chat-rooms/services"
	"chat-rooms/sink"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http/httptest"
	"os"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// e2ePasswordParams keep argon2 cheap so that registering users does not
// dominate the run.
var e2ePasswordParams = auth.PasswordParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type BaseSuite struct {
	suite.Suite
	Config Config
	API    *client.API
	log    *slog.Logger

	cleanup []func()
}

type User struct {
	Session client.Session
	Email   string
}

// SetupSuite loads the environment configuration and, unless a server URL
// is given, starts the whole stack in process.
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	s.log = logs.GetLoggerFromLevel(slog.LevelWarn)

	if s.Config.ServerURL == "" {
		s.Config.ServerURL, s.Config.HealthAddr = s.startServer()
	}
	if s.Config.HealthAddr != "" {
		s.waitForHealth(s.Config.HealthAddr)
	}
	s.API = client.NewAPI(s.Config.ServerURL)
}

func (s *BaseSuite) waitForHealth(addr string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err)
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Require().NoError(grpcclient.WaitForHealth(ctx, conn, grpcserver.ServiceName, s.log))
}

func (s *BaseSuite) TearDownSuite() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// startServer returns the base URL of the API and the gRPC health address.
func (s *BaseSuite) startServer() (string, string) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	s.Require().NoError(err)
	s.cleanup = append(s.cleanup, func() { _ = db.Close() })

	blugeDir, err := os.MkdirTemp("", "chat-rooms-e2e-bluge")
	s.Require().NoError(err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(blugeDir))
	s.Require().NoError(err)
	s.cleanup = append(s.cleanup, func() {
		_ = writer.Close()
		_ = os.RemoveAll(blugeDir)
	})

	users := storage.NewUserRepository(db, s.log, 3)
	rooms := storage.NewRoomRepository(db, s.log, 3)
	messages := storage.NewMessageRepository(db, s.log)
	index := search.NewMessageIndex(writer, s.log)
	tokens := auth.NewTokenManager([]byte("e2e-secret"), time.Hour)
	verifier := auth.NewVerifier(tokens, users, s.log)

	orchestrator := runtime.NewOrchestrator(s.log, workers.NewSupervisor(s.log, 50*time.Millisecond), runtime.NewRegistry(),
		verifier, rooms, messages, nil, runtime.Config{
			MaxContentLength:        s.Config.MaxContentLength,
			HistoryLimit:            50,
			RequireMembershipToJoin: true,
			AuthTimeout:             2 * time.Second,
			PersistenceTimeout:      2 * time.Second,
			SequenceMaxAttempts:     3,
			SinkTimeout:             time.Second,
			BufferSize:              64,
		})
	orchestrator.Add(sink.NewSearchSink(index, s.log, 1, 50*time.Millisecond))

	health := grpcserver.NewHealthServer(func() error {
		if db.IsClosed() {
			return errors.New("badger is closed")
		}
		return nil
	}, 100*time.Millisecond, s.log)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	go func() { _ = health.Serve(listener) }()

	ctx, cancel := context.WithCancel(context.Background())
	orchestrator.Start(ctx, health)

	api := httpserver.NewServer(
		services.NewAuthService(users, tokens, e2ePasswordParams, s.log),
		services.NewUserService(users, e2ePasswordParams, s.log),
		services.NewRoomService(rooms, messages, index, 50, s.log),
		verifier, time.Hour, false, s.log,
	)
	handler := ws.NewHandler(orchestrator, ws.NewOriginPolicy([]string{"*"}, s.log), ws.DefaultConfig(2*time.Second, 32, 256), s.log)
	server := httptest.NewServer(api.Routes(handler))
	s.cleanup = append(s.cleanup, func() {
		server.Close()
		health.Stop()
		orchestrator.Stop()
		cancel()
	})
	return server.URL, listener.Addr().String()
}

// Step prints a colourised header before running fn as a subtest.
func (s *BaseSuite) Step(name string, fn func()) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
	s.Run(name, fn)
}

// NewUser registers a fresh account and logs it in.
func (s *BaseSuite) NewUser(ctx context.Context, username string) User {
	email := fmt.Sprintf("%s-%s@example.com", username, uuid.NewString()[:8])
	password := "Correct-Horse-42"
	s.Require().NoError(s.API.Register(ctx, email, username+uuid.NewString()[:6], password))
	session, err := s.API.Token(ctx, email, password)
	s.Require().NoError(err)
	return User{Session: session, Email: email}
}

// Connect opens an authenticated websocket and consumes the ack.
func (s *BaseSuite) Connect(ctx context.Context, user User) *client.Conn {
	conn, err := client.Dial(ctx, s.Config.ServerURL, user.Session.Token, s.log)
	s.Require().NoError(err)
	s.cleanup = append(s.cleanup, func() { _ = conn.Close() })
	s.Expect(conn, "connection:ack")
	return conn
}

// Expect waits for the next frame and requires its type.
func (s *BaseSuite) Expect(conn *client.Conn, frameType string) ws.Frame {
	select {
	case frame, ok := <-conn.Frames():
		s.Require().True(ok, "connection closed while waiting for %s: %v", frameType, conn.Err())
		if s.Config.DebugFrames {
			s.T().Logf("<- %s %s", frame.Type, string(frame.Data))
		}
		s.Require().Equal(frameType, frame.Type, "unexpected frame %s", string(frame.Data))
		return frame
	case <-time.After(s.Config.FrameTimeout):
		s.FailNow("timed out waiting for " + frameType)
		return ws.Frame{}
	}
}

// ExpectSilence requires that nothing arrives during the quiet period.
func (s *BaseSuite) ExpectSilence(conn *client.Conn) {
	select {
	case frame, ok := <-conn.Frames():
		if ok {
			s.Failf("unexpected frame", "%s %s", frame.Type, string(frame.Data))
		}
	case <-time.After(s.Config.QuietPeriod):
	}
}

// JoinLive makes user a durable member and subscribes conn to the room.
func (s *BaseSuite) JoinLive(ctx context.Context, user User, conn *client.Conn, room domain.RoomID) {
	s.Require().NoError(s.API.JoinRoom(ctx, user.Session.Token, room))
	s.Require().NoError(conn.Join(room))
	s.Expect(conn, "room:joined")
	s.Expect(conn, "chat:history")
}
