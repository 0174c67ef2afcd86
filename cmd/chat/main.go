package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/domain"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8888"`
	Name          string `env:"CHAT_NAME"`
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
	// 1. Load configuration from environment variables and flags.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	flag.StringVar(&config.ServerAddress, "addr", config.ServerAddress, "chat relay address")
	flag.StringVar(&config.Name, "name", config.Name, "display name")
	flag.Parse()
	if config.Name == "" {
		return exitConfig, errors.New("a display name is required (-name or CHAT_NAME)")
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect and log in.
	c, err := client.Dial(ctx, config.ServerAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = c.Close()
	}()

	if err := c.Login(ctx, config.Name); err != nil {
		return exitRuntime, err
	}
	fmt.Printf(">>> Connected to %s as %s (/quit to leave)\n", config.ServerAddress, config.Name)

	// 3. Print incoming messages until the server ends the session.
	done := make(chan error, 1)
	go func() { done <- receive(c) }()

	// 4. Send every typed line.
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
			_ = c.Logout()
			return exitOK, nil
		case err := <-done:
			if err != nil {
				return exitRuntime, err
			}
			return exitOK, nil
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/quit" {
				_ = c.Logout()
				return exitOK, <-done
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if err := c.Send(line); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

func receive(c *client.Client) error {
	for {
		msg, err := c.Receive(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		switch msg.Kind {
		case domain.KindChat:
			fmt.Println(msg.String())
		case domain.KindSystem, domain.KindLogout:
			color.Cyan.Printf("[%s] * %s\n", msg.Timestamp, msg.Content)
		case domain.KindUserList:
			color.Gray.Printf("Online: %s\n", strings.Join(domain.ParseUserList(msg.Content), ", "))
		case domain.KindForceLogout:
			color.Red.Printf("[%s] * %s\n", msg.Timestamp, msg.Content)
			return nil
		}
	}
}
