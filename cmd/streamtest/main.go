// streamtest connects to the marketd event feed and prints events to the
// console.
// Usage: go run ./cmd/streamtest --url ws://localhost:8080/v1/stream --kind bid,closed
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rickgao/escrow-market/internal/connection"
	"github.com/rickgao/escrow-market/internal/market"
)

func main() {
	feedURL := flag.String("url", "ws://localhost:8080/v1/stream", "feed URL")
	kinds := flag.String("kind", "", "comma separated event kinds (default: all)")
	class := flag.Int64("class", -1, "class id; requires -token-id")
	token := flag.Int64("token-id", -1, "token id; requires -class")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	var filter connection.FilterParams
	if *kinds != "" {
		filter.Kinds = strings.Split(*kinds, ",")
	}
	if *class >= 0 || *token >= 0 {
		if *class < 0 || *token < 0 {
			logger.Error("-class and -token-id must be given together")
			os.Exit(1)
		}
		c, t := uint64(*class), uint64(*token)
		filter.ClassID, filter.TokenID = &c, &t
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client := connection.NewClient(connection.ClientConfig{
		URL:    *feedURL,
		Filter: filter,
		Token:  os.Getenv("MARKET_TOKEN"),
	}, logger)

	logger.Info("connecting", "url", *feedURL, "filter", filter.Query().Encode())
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	var received int
	stats := time.NewTicker(10 * time.Second)
	defer stats.Stop()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown complete", "events", received)
			return

		case err := <-client.Errors():
			if errors.Is(err, connection.ErrFeedClosed) {
				logger.Info("feed closed by server", "events", received)
				return
			}
			logger.Error("feed error", "error", err)
			return

		case <-stats.C:
			logger.Info("stats", "events", received, "connected", client.IsConnected())

		case msg := <-client.Messages():
			frame, err := connection.DecodeFrame(msg.Data)
			if err != nil {
				logger.Warn("bad frame", "error", err)
				continue
			}
			switch frame.Type {
			case connection.FrameSubscribed:
				logger.Info("subscribed", "sid", frame.SubscriptionID)
			case connection.FrameError:
				logger.Error("server error", "error", frame.Error)
			case connection.FrameEvent:
				if frame.Event == nil {
					continue
				}
				received++
				printEvent(*frame.Event, msg.ReceivedAt, *verbose)
			}
		}
	}
}

func printEvent(ev market.Event, at time.Time, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(ev, "", "  ")
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(ev.Kind)), data)
		return
	}

	line := fmt.Sprintf("[%s] %s asset=%s account=%s amount=%d",
		at.Format("15:04:05.000"),
		strings.ToUpper(string(ev.Kind)),
		ev.Asset,
		ev.Account,
		ev.Amount,
	)
	if !ev.Counterparty.IsZero() {
		line += " counterparty=" + ev.Counterparty.String()
	}
	fmt.Println(line)
}
