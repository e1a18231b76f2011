package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"dgtt/internal/audit"
	auditmemory "dgtt/internal/audit/store/memory"
	auditpostgres "dgtt/internal/audit/store/postgres"
	candidateservice "dgtt/internal/candidate/service"
	candidatestore "dgtt/internal/candidate/store"
	examservice "dgtt/internal/exam/service"
	examstore "dgtt/internal/exam/store"
	"dgtt/internal/gateway/notification"
	httpapi "dgtt/internal/http"
	"dgtt/internal/platform/config"
	"dgtt/internal/platform/kafka"
	"dgtt/internal/platform/postgres"
	"dgtt/internal/platform/redis"
	schoolservice "dgtt/internal/school/service"
	schoolstore "dgtt/internal/school/store"
	txcontext "dgtt/pkg/platform/tx"
)

// infra owns every external connection. Any of db, redis and kafka may be nil
// when the matching setting is empty.
type infra struct {
	db            *sql.DB
	redis         *redis.Client
	kafka         *kafka.Client
	tx            txcontext.Runner
	stores        storeSet
	notifyMetrics *notification.Metrics
}

// storeSet is the backend-neutral view handed to the services.
type storeSet struct {
	audit      audit.Store
	schools    schoolservice.Store
	candidates candidateservice.Store
	exams      examservice.Store
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{notifyMetrics: notification.NewMetrics()}

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		in.tx = txcontext.NewInMemory()
		in.stores = storeSet{
			audit:      auditmemory.NewInMemoryStore(),
			schools:    schoolstore.NewInMemory(),
			candidates: candidatestore.NewInMemory(),
			exams:      examstore.NewInMemory(),
		}
	} else {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				in.Close()
				return nil, err
			}
		}
		in.tx = txcontext.NewPostgres(db)
		in.stores = storeSet{
			audit:      auditpostgres.New(db),
			schools:    schoolstore.NewPostgres(db),
			candidates: candidatestore.NewPostgres(db),
			exams:      examstore.NewPostgres(db),
		}
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	in.redis = rc

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.kafka = kc
	if kc != nil {
		if err := kc.EnsureTopic(ctx); err != nil {
			in.Close()
			return nil, err
		}
	}
	return in, nil
}

// sink fans notifications out to the log and, when configured, Kafka.
// Redis de-duplicates the whole fan-out so a re-driven step publishes once.
func (in *infra) sink(cfg config.Config, log *slog.Logger) notification.Sink {
	fanout := notification.Fanout{notification.NewLogSink(log)}
	if in.kafka != nil {
		fanout = append(fanout, notification.NewKafkaSink(in.kafka, in.kafka.Topic()))
	}
	if in.redis == nil {
		return fanout
	}
	return notification.NewDedupSink(fanout, in.redis, cfg.Notification.DedupTTL, in.notifyMetrics)
}

func (in *infra) checks() map[string]httpapi.Check {
	checks := map[string]httpapi.Check{}
	if in.db != nil {
		checks["database"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	if in.kafka != nil {
		checks["kafka"] = in.kafka.Health
	}
	return checks
}

func (in *infra) backend() string {
	if in.db != nil {
		return "postgres"
	}
	return "memory"
}

func (in *infra) Close() {
	if in.kafka != nil {
		in.kafka.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
