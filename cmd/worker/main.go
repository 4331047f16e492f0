package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/llm-bridge/internal/chat"
	"github.com/suPer8Hu/llm-bridge/internal/common"
	"github.com/suPer8Hu/llm-bridge/internal/config"
	"github.com/suPer8Hu/llm-bridge/internal/db"
	"github.com/suPer8Hu/llm-bridge/internal/store/rabbitmq"
)

const (
	maxAttempts = 3
	retryDelay  = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(common.NewLogger(os.Stdout, cfg.LogFormat, cfg.LogLevel))

	if cfg.RabbitURL == "" {
		slog.Error("RABBIT_URL is required for the usage worker")
		os.Exit(1)
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		slog.Error("db connect", "err", err)
		os.Exit(1)
	}
	if err := gdb.AutoMigrate(&chat.UsageRecord{}); err != nil {
		slog.Error("automigrate", "err", err)
		os.Exit(1)
	}
	repo := chat.NewRepo(gdb)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		slog.Error("rabbit dial", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		slog.Error("rabbit channel", "err", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		slog.Error("queue declare", "err", err)
		os.Exit(1)
	}

	//  strict concurrency control
	concurrency := cfg.WorkerConcurrency

	if err := ch.Qos(concurrency, 0, false); err != nil {
		slog.Error("qos", "err", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		slog.Error("consume", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// in-flight deliveries finish even after a shutdown signal
	work := context.WithoutCancel(ctx)

	slog.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	// worker pool
	deliveries := make(chan amqp.Delivery, concurrency*2)
	// amqp channels are not safe for concurrent publishing.
	var retryMu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range deliveries {
				var ev chat.UsageEvent
				if err := json.Unmarshal(d.Body, &ev); err != nil || ev.ID == "" {
					slog.Warn("bad usage message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				created, err := repo.InsertUsage(work, chat.RecordFromEvent(ev))
				if err != nil {
					attempt := rabbitmq.Attempt(d) + 1
					slog.Warn("store usage failed", "worker", workerID, "event_id", ev.ID, "attempt", attempt, "cost", time.Since(start), "err", err)
					if attempt >= maxAttempts {
						_ = d.Nack(false, false)
						continue
					}
					retryMu.Lock()
					rerr := rabbitmq.Retry(work, ch, cfg.RabbitQueue, d, attempt, retryDelay)
					retryMu.Unlock()
					if rerr != nil {
						slog.Error("retry publish failed", "worker", workerID, "event_id", ev.ID, "err", rerr)
						_ = d.Nack(false, false)
						continue
					}
					_ = d.Ack(false)
					continue
				}
				if !created {
					slog.Debug("duplicate usage event", "event_id", ev.ID)
				}

				if err := d.Ack(false); err != nil {
					slog.Warn("ack failed", "worker", workerID, "event_id", ev.ID, "err", err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down")
			close(deliveries)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				slog.Warn("delivery channel closed")
				close(deliveries)
				wg.Wait()
				return
			}
			deliveries <- d
		}
	}
}
