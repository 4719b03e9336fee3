// Команда storyctl - консольный клиент бэкенда историй: список, загрузка, удаление и прослушивание.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storylens/internal/card"
	"storylens/internal/client"
	"storylens/internal/config"
	"storylens/internal/logger"
	"storylens/internal/player"
)

func main() {
	cfg, err := config.LoadCLI()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewCLI(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	api, err := client.NewStoryAPIClient(cfg.APIBaseURL, cfg.APITimeout, cfg.APIRetryCount, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		api: api,
		loc: cfg.Location,
		players: func() (card.HandleFactory, error) {
			p, err := player.New(cfg.PlayerCommand, log)
			if err != nil {
				return nil, err
			}
			return p.Factory(), nil
		},
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		errOut: os.Stderr,
		logger: log,
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
