package main

import (
	"bufio"
	"chat-rooms/client"
	"chat-rooms/domain"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables. Either a token or
// an email and password pair is needed.
type Config struct {
	ServerURL     string `env:"CHAT_SERVER_URL,default=http://localhost:8080"`
	Token         string `env:"CHAT_TOKEN"`
	Email         string `env:"CHAT_EMAIL"`
	Password      string `env:"CHAT_PASSWORD"`
	DefaultRoomID int64  `env:"CHAT_ROOM_ID,default=1"`
	LogLevel      string `env:"LOG_LEVEL,default=WARN"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitConfig, fmt.Errorf("loading .env: %w", err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Token, from the environment or a login
	token := config.Token
	if token == "" {
		if config.Email == "" || config.Password == "" {
			return exitConfig, fmt.Errorf("CHAT_TOKEN or CHAT_EMAIL and CHAT_PASSWORD are required")
		}
		session, err := client.NewAPI(config.ServerURL).Token(ctx, config.Email, config.Password)
		if err != nil {
			return exitRuntime, fmt.Errorf("login failed: %w", err)
		}
		token = session.Token
	}

	// 3. Websocket session
	conn, err := client.Dial(ctx, config.ServerURL, token, log)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = conn.Close() }()

	term := newTerminal(os.Stdout, domain.RoomID(config.DefaultRoomID))
	term.info(fmt.Sprintf(">>> Connected to %s (type /help, Ctrl+C to quit)", config.ServerURL))
	if err = conn.Join(term.room); err != nil {
		return exitRuntime, err
	}

	// 4. Reception loop
	received := make(chan struct{})
	go func() {
		defer close(received)
		for frame := range conn.Frames() {
			term.render(frame)
		}
	}()

	// 5. Input loop
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case <-received:
			return exitRuntime, fmt.Errorf("connection closed: %w", conn.Err())
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			quit, err := term.execute(conn, line)
			if err != nil {
				term.failure(err.Error())
			}
			if quit {
				return exitOK, nil
			}
		}
	}
}
