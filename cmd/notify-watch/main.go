package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/angelmondragon/campusaid-backend/pkg/client"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

type watchConfig struct {
	BaseURL  string        `envconfig:"CAMPUSAID_WATCH_BASE_URL" default:"http://localhost:8080"`
	Token    string        `envconfig:"CAMPUSAID_WATCH_TOKEN" required:"true"`
	Interval time.Duration `envconfig:"CAMPUSAID_WATCH_INTERVAL" default:"15s"`
	LogLevel string        `envconfig:"CAMPUSAID_LOG_LEVEL" default:"info"`
}

func main() {
	_ = godotenv.Load()

	var cfg watchConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "notify-watch: %v\n", err)
		os.Exit(1)
	}

	logg := logger.New(logger.Options{
		ServiceName: "notify-watch",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Output:      os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := client.NewClient(cfg.BaseURL, cfg.Token)
	if err != nil {
		logg.Error(ctx, "failed to create api client", err)
		os.Exit(1)
	}

	printer := newSnapshotPrinter(os.Stdout)
	poller, err := client.NewPoller(client.PollerParams{
		Source:     api,
		Interval:   cfg.Interval,
		OnSnapshot: printer.Print,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create poller", err)
		os.Exit(1)
	}

	logg.Info(logg.WithFields(ctx, map[string]any{"base_url": cfg.BaseURL, "interval": cfg.Interval.String()}), "watching notifications")
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "poller stopped", err)
		os.Exit(1)
	}
}

// snapshotPrinter writes the badge on every change and each offer the first time it is seen.
type snapshotPrinter struct {
	out       io.Writer
	seen      map[string]struct{}
	lastBadge int64
	started   bool
}

func newSnapshotPrinter(out io.Writer) *snapshotPrinter {
	return &snapshotPrinter{out: out, seen: map[string]struct{}{}}
}

func (p *snapshotPrinter) Print(snap client.Snapshot) {
	if !p.started || snap.Badge != p.lastBadge {
		fmt.Fprintf(p.out, "[%s] pending offers: %d\n", snap.FetchedAt.Format(time.Kitchen), snap.Badge)
		p.lastBadge = snap.Badge
		p.started = true
	}

	current := make(map[string]struct{}, len(snap.Items))
	for _, item := range snap.Items {
		key := item.OfferID.String()
		current[key] = struct{}{}
		if _, ok := p.seen[key]; ok {
			continue
		}
		fmt.Fprintf(p.out, "  new offer from %s (%s, %s) on %q\n", item.HelperName, item.HelperYear, item.HelperMajor, item.RequestTitle)
	}
	p.seen = current
}
