// Package app wires the services shared by the server and worker binaries
// from configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/event-crm/internal/config"
	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/export"
	"github.com/ignite/event-crm/internal/notify"
	"github.com/ignite/event-crm/internal/pkg/logger"
	"github.com/ignite/event-crm/internal/repository/memory"
	"github.com/ignite/event-crm/internal/repository/postgres"
	"github.com/ignite/event-crm/internal/repository/rediscache"
	"github.com/ignite/event-crm/internal/service/contact"
	"github.com/ignite/event-crm/internal/service/event"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// App holds the connections and services built from one Config.
type App struct {
	Config *config.Config

	// DB is nil when the server runs on the in-memory store.
	DB    *sql.DB
	Redis *redis.Client
	S3    *s3.Client

	Contacts *contact.Service
	Events   *event.Service
	Pipeline *pipeline.Service
	// Exporter is nil when no roster bucket is configured.
	Exporter *export.RosterExporter

	publisher *notify.Publisher
}

type stores struct {
	contacts  contact.Repository
	lookup    pipeline.ContactStore
	events    event.Repository
	records   pipeline.Repository
	attendees pipeline.AttendeeRepository
}

// New connects to the configured backends and builds the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	var st stores
	if cfg.Database.URL != "" {
		db, err := OpenDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.DB = db
		contacts := postgres.NewContactRepo(db)
		st = stores{
			contacts:  contacts,
			lookup:    contacts,
			events:    postgres.NewEventRepo(db),
			records:   postgres.NewPipelineRepo(db),
			attendees: postgres.NewAttendeeRepo(db),
		}
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store")
		mem := memory.NewStore()
		st = stores{
			contacts:  mem.Contacts(),
			lookup:    mem.Contacts(),
			events:    mem.Events(),
			records:   mem.Pipeline(),
			attendees: mem.Attendees(),
		}
	}

	if cfg.Redis.URL != "" {
		client, err := OpenRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Warn("redis unavailable; event cache and distributed locks disabled", "error", err)
		} else {
			a.Redis = client
		}
	}

	a.Events = event.NewService(st.events, nil)
	if a.Redis != nil {
		a.Events = event.NewService(st.events, rediscache.NewEventCache(a.Redis, cfg.Pipeline.EventCacheTTL()))
	}
	a.Events.SetDefaultStages(cfg.Pipeline.Stages())

	a.Contacts = contact.NewService(st.contacts)

	a.Pipeline = pipeline.NewService(st.records, st.attendees, st.lookup, a.Events)
	a.Pipeline.SetSettings(pipeline.Settings{
		DefaultStages:        cfg.Pipeline.Stages(),
		DefaultAudienceTypes: cfg.Pipeline.AudienceTypes(),
		DefaultAudienceType:  domain.NormalizeAudienceType(cfg.Pipeline.DefaultAudienceType),
	})

	if cfg.AWS.GraduationQueueURL != "" || cfg.AWS.RosterExportBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			logger.Warn("AWS config unavailable; graduation events and roster export disabled", "error", err)
		} else {
			a.wireAWS(awsCfg, st.lookup)
		}
	}

	return a, nil
}

func (a *App) wireAWS(awsCfg aws.Config, lookup pipeline.ContactStore) {
	if url := a.Config.AWS.GraduationQueueURL; url != "" {
		a.publisher = notify.NewPublisher(sqs.NewFromConfig(awsCfg), url)
		a.Pipeline.SetNotifier(a.publisher)
		logger.Info("graduation events enabled", "queue_url", url)
	}
	if bucket := a.Config.AWS.RosterExportBucket; bucket != "" {
		a.S3 = s3.NewFromConfig(awsCfg)
		a.Exporter = export.NewRosterExporter(a.S3, bucket, a.Pipeline, lookup)
		logger.Info("roster export enabled", "bucket", bucket)
	}
}

// OpenDB opens and pings the PostgreSQL pool.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 4)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// OpenRedis parses a redis:// URL, falling back to treating it as a plain
// host:port, and pings the server.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Close waits for queued graduation events and releases connections.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Wait()
	}
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
