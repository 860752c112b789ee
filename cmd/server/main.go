package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/orderdesk/internal/catalog"
	"github.com/kiwari-pos/orderdesk/internal/config"
	"github.com/kiwari-pos/orderdesk/internal/docstore"
	"github.com/kiwari-pos/orderdesk/internal/events"
	"github.com/kiwari-pos/orderdesk/internal/logging"
	"github.com/kiwari-pos/orderdesk/internal/metrics"
	"github.com/kiwari-pos/orderdesk/internal/refresh"
	"github.com/kiwari-pos/orderdesk/internal/router"
	"github.com/kiwari-pos/orderdesk/internal/sales"
	"github.com/kiwari-pos/orderdesk/internal/service"
	"github.com/kiwari-pos/orderdesk/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.Must(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := openPublisher(cfg, log)
	if err != nil {
		return err
	}
	if publisher != nil {
		defer publisher.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	menu := catalog.NewRepository(store)
	hub := ws.NewHub(log)

	// The order service needs the controller as a notifier and the
	// controller reads through the service, so the fan-out is filled in after.
	notifiers := service.Notifiers{m, hub}
	orders := service.NewOrderService(store, menu, &notifiers, log)

	ctrl := refresh.New(refresh.StoreSource{Orders: orders, Menu: menu}, cfg.PollInterval, log)
	ctrl.SetObserver(m)
	notifiers = append(notifiers, ctrl)
	var eventQueue *events.Queue
	if publisher != nil {
		eventQueue = events.NewQueue(publisher, events.DefaultQueueSize, log)
		notifiers = append(notifiers, eventQueue)
	}

	handler := router.New(router.Deps{
		AllowedOrigins: cfg.AllowedOrigins,
		Orders:         orders,
		Menu:           menu,
		Snapshots:      ctrl,
		Reporter:       sales.NewReporter(cfg.Calendar()),
		Hub:            hub,
		Metrics:        m,
		Gatherer:       reg,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wsUpdates, unsubscribeWS := ctrl.Subscribe()
	defer unsubscribeWS()
	metricUpdates, unsubscribeMetrics := ctrl.Subscribe()
	defer unsubscribeMetrics()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return hub.ForwardSnapshots(gctx, wsUpdates) })
	g.Go(func() error { return m.WatchSnapshots(gctx, metricUpdates) })
	if eventQueue != nil {
		g.Go(func() error { return eventQueue.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreBackend).
			Str("events", cfg.EventsBackend).
			Dur("poll_interval", cfg.PollInterval).
			Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore connects the configured persistence backend.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (docstore.Store, func(), error) {
	store, closeFn, err := docstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	switch cfg.StoreBackend {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store, orders are lost on restart")
	default:
		log.Info().Str("store", cfg.StoreBackend).Msg("store connected")
	}
	return store, closeFn, nil
}

type publisher interface {
	service.Notifier
	io.Closer
}

// openPublisher connects the configured event stream, or returns nil.
func openPublisher(cfg *config.Config, log zerolog.Logger) (publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing order events to kafka")
		return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log), nil
	case config.EventsRabbitMQ:
		p, err := events.DialRabbit(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		log.Info().Str("exchange", cfg.RabbitMQExchange).Msg("publishing order events to rabbitmq")
		return p, nil
	}
	return nil, nil
}
