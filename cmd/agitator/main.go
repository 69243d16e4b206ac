// Package main - agitator
// Load generator for the hint server: simulates many concurrent game
// clients reporting display changes while an operator pushes messages.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/hintserver/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	AdminURL       string
	NumClients     int
	ActionInterval time.Duration
	PushInterval   time.Duration
	TestDuration   time.Duration
	ResultsPath    string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	BytesReceived    int64
	EmptyPayloads    int64
	AdminPushes      int64
	Errors           int64
	MaxPayload       int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) observePayload(n int) {
	for {
		cur := atomic.LoadInt64(&s.MaxPayload)
		if int64(n) <= cur || atomic.CompareAndSwapInt64(&s.MaxPayload, cur, int64(n)) {
			return
		}
	}
}

func main() {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "agitator",
		Short: "Stress test tool for the hint server",
		Example: `  # 200 clients for two minutes
  agitator --clients 200 --duration 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("=========================================")
			fmt.Println("AGITATOR - hint server stress test")
			fmt.Println("=========================================")
			fmt.Printf("Server:   %s\n", cfg.ServerURL)
			fmt.Printf("Clients:  %d\n", cfg.NumClients)
			fmt.Printf("Interval: %v\n", cfg.ActionInterval)
			fmt.Printf("Duration: %v\n", cfg.TestDuration)
			fmt.Println("=========================================")

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TestDuration)
			defer cancel()

			stats := runStressTest(ctx, cfg)
			return printResults(stats, cfg)
		},
	}

	rootCmd.Flags().StringVar(&cfg.ServerURL, "url", "ws://localhost:8080/ws", "WebSocket server URL")
	rootCmd.Flags().StringVar(&cfg.AdminURL, "admin", "http://localhost:8080", "Admin API base URL (empty disables pushes)")
	rootCmd.Flags().IntVar(&cfg.NumClients, "clients", 50, "Number of concurrent clients")
	rootCmd.Flags().DurationVar(&cfg.ActionInterval, "interval", 500*time.Millisecond, "Display update interval per client")
	rootCmd.Flags().DurationVar(&cfg.PushInterval, "push-interval", time.Second, "Interval between admin broadcast pushes")
	rootCmd.Flags().DurationVar(&cfg.TestDuration, "duration", 60*time.Second, "Test duration")
	rootCmd.Flags().StringVar(&cfg.ResultsPath, "out", "stress_test_results.json", "Where to write the JSON results")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runStressTest(ctx context.Context, cfg Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	fmt.Println("\nStarting clients...")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.NumClients; i++ {
		clientID := i
		g.Go(func() error {
			runClient(gctx, clientID, cfg, stats)
			return nil
		})

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	if cfg.AdminURL != "" {
		g.Go(func() error {
			runPusher(gctx, cfg, stats)
			return nil
		})
	}

	fmt.Printf("All %d clients started\n\n", cfg.NumClients)

	// Progress updates
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%d recv=%d (%s) errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					humanize.Bytes(uint64(atomic.LoadInt64(&stats.BytesReceived))),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	_ = g.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, cfg Config, stats *Stats) {
	playerID := fmt.Sprintf("AGITATOR_%03d", clientID)

	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client %d: URL parse error: %v\n", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("player", playerID)
	q.Set("name", fmt.Sprintf("Agitator %d", clientID))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "client %d: connection failed: %v\n", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			var msg network.HintMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			atomic.AddInt64(&stats.BytesReceived, int64(len(msg.Text)))
			if msg.Text == "" {
				atomic.AddInt64(&stats.EmptyPayloads, 1)
			}
			stats.observePayload(len(msg.Text))
		}
	}()

	ticker := time.NewTicker(cfg.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(randomClientMessage()); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

var aspectRatios = []float64{4.0 / 3.0, 16.0 / 10.0, 16.0 / 9.0, 21.0 / 9.0, 32.0 / 9.0}

func randomClientMessage() network.ClientMessage {
	switch n := rand.Intn(10); {
	case n == 0:
		return network.ClientMessage{Type: network.MsgTypePause}
	case n < 3:
		return network.ClientMessage{Type: network.MsgTypeResume}
	default:
		return network.ClientMessage{
			Type:        network.MsgTypeAspect,
			AspectRatio: aspectRatios[rand.Intn(len(aspectRatios))],
		}
	}
}

var pushTexts = []string{
	"Round starts in 10 seconds",
	"<color=#ff4444>Warning:</color> zone closing",
	"Bonus objective unlocked\nCapture the <b>north</b> point",
	"Server restart at 04:00 UTC",
}

// runPusher broadcasts temporary messages through the admin API.
func runPusher(ctx context.Context, cfg Config, stats *Stats) {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			body, _ := json.Marshal(network.TemporaryRequest{
				Text:        pushTexts[rand.Intn(len(pushTexts))],
				DurationSec: 2,
				Priority:    rand.Intn(4) == 0,
			})
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.AdminURL+"/api/hints/temporary", bytes.NewReader(body))
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
				continue
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			atomic.AddInt64(&stats.AdminPushes, 1)
		}
	}
}

func printResults(stats *Stats, cfg Config) error {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	bytesRecv := atomic.LoadInt64(&stats.BytesReceived)

	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Payloads Received: %s (%s empty)\n", humanize.Comma(recv), humanize.Comma(atomic.LoadInt64(&stats.EmptyPayloads)))
	fmt.Printf("Bytes Received:    %s\n", humanize.Bytes(uint64(bytesRecv)))
	fmt.Printf("Largest Payload:   %s\n", humanize.Bytes(uint64(atomic.LoadInt64(&stats.MaxPayload))))
	fmt.Printf("Admin Pushes:      %s\n", humanize.Comma(atomic.LoadInt64(&stats.AdminPushes)))
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(recv) / cfg.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f payloads/sec\n", throughput)

	if len(stats.Latencies) > 0 {
		var total time.Duration
		lo, hi := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			lo = min(lo, l)
			hi = max(hi, l)
		}
		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", lo)
		fmt.Printf("  Avg: %v\n", total/time.Duration(len(stats.Latencies)))
		fmt.Printf("  Max: %v\n", hi)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && recv > 0:
		fmt.Println("TEST PASSED: system handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: some errors detected")
	default:
		fmt.Println("TEST FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"messages_sent":      sent,
		"payloads_received":  recv,
		"bytes_received":     bytesRecv,
		"max_payload":        atomic.LoadInt64(&stats.MaxPayload),
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  cfg.NumClients,
			"interval": cfg.ActionInterval.String(),
			"duration": cfg.TestDuration.String(),
		},
	}
	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.ResultsPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	fmt.Printf("\nResults saved to %s\n", cfg.ResultsPath)
	return nil
}
