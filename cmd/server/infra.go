package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"certledger/internal/credential/events"
	credservice "certledger/internal/credential/service"
	credstore "certledger/internal/credential/store"
	"certledger/internal/platform/config"
	"certledger/internal/platform/database"
	"certledger/internal/platform/health"
	"certledger/internal/platform/kafka/producer"
	platformredis "certledger/internal/platform/redis"
	verifyservice "certledger/internal/verification/service"
	verifystore "certledger/internal/verification/store"
)

// infrastructure holds the stateful dependencies and the stores built on
// them. Every field except the stores and publisher may be nil.
type infrastructure struct {
	db       *database.Pool
	redis    *platformredis.Client
	producer *producer.Producer
	logger   *slog.Logger

	credentials credservice.Store
	history     verifyservice.HistoryStore
	publisher   events.Publisher
}

func buildInfra(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger) (*infrastructure, error) {
	in := &infrastructure{logger: log}

	pool, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	in.db = pool
	if pool != nil {
		if err := pool.RegisterMetrics(reg); err != nil {
			log.Warn("database pool metrics not registered", "error", err)
		}
		in.credentials = credstore.NewPostgres(pool.DB())
		in.history = verifystore.NewPostgres(pool.DB())
		log.Info("using postgres stores")
	} else {
		in.credentials = credstore.NewInMemory()
		in.history = verifystore.NewInMemory()
		log.Warn("database not configured, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.RedisConfig, platformredis.NewPoolMetrics(reg))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	in.redis = rc

	if cfg.Brokers == "" {
		in.publisher = events.NewLogPublisher(log)
		log.Info("kafka not configured, credential events go to the log")
		return in, nil
	}
	p, err := producer.New(producer.Config{
		Brokers:         cfg.Brokers,
		ClientID:        cfg.Kafka.ClientID,
		Acks:            cfg.Acks,
		Retries:         cfg.Retries,
		DeliveryTimeout: cfg.DeliveryTimeout,
	}, log)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	in.producer = p
	in.publisher = events.NewKafkaPublisher(p, cfg.Topic)
	return in, nil
}

func (in *infrastructure) registerChecks(h *health.Handler) {
	if in.db != nil {
		h.RegisterCheck("database", in.db.Health)
	}
	if in.redis != nil {
		h.RegisterOptionalCheck("redis", in.redis.Health)
	}
	if in.producer != nil {
		h.RegisterOptionalCheck("kafka", in.producer.Ping)
	}
}

// Close releases connections in reverse order of creation.
func (in *infrastructure) Close() {
	if in.producer != nil {
		in.producer.Close(producerFlushTimeout)
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			in.logger.Warn("closing redis", "error", err)
		}
	}
	if err := in.db.Close(); err != nil {
		in.logger.Warn("closing database", "error", err)
	}
}
