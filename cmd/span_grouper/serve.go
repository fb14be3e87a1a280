package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/config"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/bootstrapper"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/client"
	"github.com/Avi18971911/spangrouper/pkg/event_bus"
	"github.com/Avi18971911/spangrouper/pkg/metrics"
	"github.com/Avi18971911/spangrouper/pkg/output"
	"github.com/Avi18971911/spangrouper/pkg/store"
	"github.com/Avi18971911/spangrouper/pkg/store/bolt"
	"github.com/Avi18971911/spangrouper/pkg/store/memory"
	redisstore "github.com/Avi18971911/spangrouper/pkg/store/redis"
	"github.com/Avi18971911/spangrouper/pkg/trace/cache"
	"github.com/Avi18971911/spangrouper/pkg/trace/server"
	"github.com/Avi18971911/spangrouper/pkg/trace/service"
	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	_ "google.golang.org/grpc/encoding/gzip"
	"math/rand/v2"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

type app struct {
	cfg           *config.Config
	bus           event_bus.TopicBus[output.TraceRecord, output.TraceRecord]
	tasks         []*service.Task
	emitted       *cache.EmittedTraceCacheImpl
	redisClient   *redis.Client
	grpcServer    *grpc.Server
	metricsServer *http.Server
	logger        *zap.Logger
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	err = a.bus.Subscribe(cfg.Output.Topic, func(record output.TraceRecord) error {
		logger.Debug(
			"Structured trace published",
			zap.String("key", record.Key),
			zap.Int("span_count", len(record.Trace.Spans)),
		)
		return nil
	}, false)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Receiver.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Receiver.ListenAddress, err)
	}
	return a.run(ctx, listener)
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(registry)
	clock := clockwork.NewRealClock()

	a.bus = event_bus.NewTopicBus[output.TraceRecord, output.TraceRecord](EventBus.New(), logger)
	emitter, err := a.newEmitter(ctx, clock)
	if err != nil {
		return nil, err
	}

	var emitted cache.EmittedTraceCache = cache.NoopEmittedTraceCache{}
	if cfg.EmittedTraceCache.Enabled {
		a.emitted, err = cache.NewEmittedTraceCacheImpl(cfg.EmittedTraceCache.MaxTraces, cfg.EmittedTraceCache.TTL())
		if err != nil {
			return nil, err
		}
		emitted = a.emitted
	}

	limits := service.SpanLimits{
		PerTenant: cfg.InflightTraceMaxSpanCount,
		Default:   cfg.DefaultSpanLimit(),
	}
	seed := uint64(time.Now().UnixNano())
	for i := 0; i < cfg.Tasks; i++ {
		stores, err := a.openStores(ctx, i)
		if err != nil {
			a.close()
			return nil, err
		}
		taskConfig := service.TaskConfig{
			ID:        i,
			QueueSize: cfg.TaskQueueSize,
			Window:    cfg.WindowTimeout(),
			Limits:    limits,
			Sampler:   service.NewSampler(cfg.Sampling(), rand.NewPCG(seed, uint64(i))),
		}
		a.tasks = append(a.tasks, service.NewTask(taskConfig, stores, emitter, emitted, clock, m, logger))
	}

	receiver := server.NewTraceServiceServerImpl(
		service.NewPartitioner(a.tasks),
		server.ReceiverConfig{
			TenantAttribute: cfg.Receiver.TenantIDAttribute,
			DefaultTenantID: cfg.Receiver.DefaultTenantID,
		},
		logger,
	)
	a.grpcServer = grpc.NewServer()
	protoTrace.RegisterTraceServiceServer(a.grpcServer, receiver)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	a.metricsServer = &http.Server{
		Addr:              cfg.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info(
		"Span grouper configured",
		zap.Duration("window", cfg.WindowTimeout()),
		zap.Int("tasks", cfg.Tasks),
		zap.String("store", string(cfg.Store.Backend)),
		zap.Bool("elasticsearch", cfg.Output.Elasticsearch.Enabled),
	)
	return a, nil
}

func (a *app) newEmitter(ctx context.Context, clock clockwork.Clock) (output.Emitter, error) {
	emitters := []output.Emitter{output.NewBusEmitter(a.bus, a.cfg.Output.Topic)}
	esConfig := a.cfg.Output.Elasticsearch
	if !esConfig.Enabled {
		return output.NewMultiEmitter(emitters...), nil
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: esConfig.Addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	if err := bootstrapper.NewBootstrapper(es, a.logger).BootstrapElasticsearch(ctx, esConfig.Index); err != nil {
		return nil, err
	}
	esClient := client.NewElasticsearchClientImpl(es, client.Async)
	emitters = append(emitters, output.NewElasticsearchEmitter(esClient, esConfig.Index, clock, a.logger))
	return output.NewMultiEmitter(emitters...), nil
}

func (a *app) openStores(ctx context.Context, task int) (*store.Stores, error) {
	storeConfig := a.cfg.Store
	switch storeConfig.Backend {
	case config.BoltBackend:
		return bolt.OpenTaskStores(storeConfig.Dir, task, a.logger)
	case config.RedisBackend:
		if a.redisClient == nil {
			a.redisClient = redis.NewClient(&redis.Options{
				Addr:     storeConfig.Redis.Address,
				Password: storeConfig.Redis.Password,
				DB:       storeConfig.Redis.DB,
			})
			if err := a.redisClient.Ping(ctx).Err(); err != nil {
				return nil, fmt.Errorf("failed to reach redis at %s: %w", storeConfig.Redis.Address, err)
			}
		}
		return redisstore.OpenTaskStores(a.redisClient, storeConfig.Redis.KeyPrefix, task), nil
	case config.MemoryBackend:
		a.logger.Warn("Using in-memory stores, in-flight traces will not survive a restart", zap.Int("task", task))
		return memory.NewTaskStores(), nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalidConfig, storeConfig.Backend)
	}
}

// run blocks until ctx is cancelled or a task, the receiver or the metrics
// server fails.
func (a *app) run(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range a.tasks {
		g.Go(func() error {
			return task.Run(gctx)
		})
	}

	g.Go(func() error {
		a.logger.Info("Receiving spans", zap.String("address", listener.Addr().String()))
		if err := a.grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("receiver stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.grpcServer.GracefulStop()
		return nil
	})

	g.Go(func() error {
		a.logger.Info("Serving metrics", zap.String("address", a.metricsServer.Addr))
		err := a.metricsServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server stopped: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.metricsServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *app) close() {
	for _, task := range a.tasks {
		if err := task.Close(); err != nil {
			a.logger.Error("Failed to close task", zap.Error(err))
		}
	}
	a.tasks = nil
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Failed to close redis client", zap.Error(err))
		}
		a.redisClient = nil
	}
	if a.emitted != nil {
		a.emitted.Close()
		a.emitted = nil
	}
	a.bus.WaitAsync()
}
