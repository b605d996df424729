package main

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"healthpass/internal/audit"
	"healthpass/internal/backend"
	"healthpass/internal/documents/factory"
	"healthpass/internal/documents/parsers"
	"healthpass/internal/documents/repository"
	"healthpass/internal/documents/store"
	"healthpass/internal/documents/validation"
	"healthpass/internal/keys"
	"healthpass/internal/platform/config"
	"healthpass/internal/platform/kv"
	"healthpass/internal/platform/metrics"
	"healthpass/internal/platform/postgres"
	"healthpass/internal/platform/redis"
	"healthpass/internal/processing"
	"healthpass/internal/profile"
	httptransport "healthpass/internal/transport/http"
	"healthpass/internal/uniqueness"
)

type app struct {
	cfg         config.Server
	log         *slog.Logger
	router      http.Handler
	keys        *keys.Directory
	revalidator *processing.Revalidator
	closers     []func()
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// build connects infrastructure and assembles the pipeline. Redis, Postgres
// and Kafka are optional; without them state lives in process memory.
func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	checks := map[string]httptransport.HealthCheck{}

	kvStore, err := a.keyValueStore(ctx, checks)
	if err != nil {
		return nil, err
	}
	payloads, err := a.payloadStore(ctx, checks)
	if err != nil {
		return nil, err
	}
	sink, err := a.auditSink(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := audit.NewPublisher(sink, audit.WithLogger(log), audit.WithAsyncBuffer(1024))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	var client *backend.Client
	if cfg.Backend.URL != "" {
		client, err = backend.New(cfg.Backend.URL, backend.WithTimeout(cfg.Backend.Timeout), backend.WithLogger(log))
		if err != nil {
			return nil, err
		}
		a.keys, err = keys.New(client, keys.WithLogger(log), keys.WithRefreshInterval(cfg.KeyRefreshInterval))
		if err != nil {
			return nil, err
		}
	}

	f, err := a.factory(m)
	if err != nil {
		return nil, err
	}
	repo, err := repository.New(payloads, f, repository.WithLogger(log), repository.WithMetrics(m))
	if err != nil {
		return nil, err
	}
	profiles, err := profile.New(kvStore, profile.WithLogger(log))
	if err != nil {
		return nil, err
	}
	validator := validation.Default(profiles)

	opts := []processing.Option{
		processing.WithLogger(log),
		processing.WithMetrics(m),
		processing.WithAuditPublisher(publisher),
		processing.WithChildProfiles(profiles),
	}
	if cfg.Uniqueness.Enabled {
		if client == nil {
			return nil, errors.New("UNIQUENESS_ENABLED requires BACKEND_URL")
		}
		uopts := []uniqueness.Option{uniqueness.WithLogger(log), uniqueness.WithMetrics(m)}
		if cfg.Uniqueness.Key != "" {
			uopts = append(uopts, uniqueness.WithFingerprintKey([]byte(cfg.Uniqueness.Key)))
		}
		claims, err := uniqueness.New(kvStore, client, uopts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, processing.WithRedemption(claims))
	}
	service, err := processing.New(f, validator, repo, opts...)
	if err != nil {
		return nil, err
	}
	a.revalidator, err = processing.NewRevalidator(repo, validator, kvStore,
		processing.WithRevalidatorLogger(log),
		processing.WithRevalidatorMetrics(m),
		processing.WithRevalidatorAudit(publisher),
	)
	if err != nil {
		return nil, err
	}

	handler := httptransport.New(service, a.revalidator, profiles, httptransport.WithLogger(log))
	a.router = httptransport.NewRouter(handler, log, m, reg, checks)
	log.Info("pipeline ready",
		"parsers", f.IDs(),
		"redemption", service.RedemptionEnabled(),
	)
	ok = true
	return a, nil
}

func (a *app) keyValueStore(ctx context.Context, checks map[string]httptransport.HealthCheck) (kv.Store, error) {
	client, err := redis.New(ctx, a.cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		a.log.Warn("REDIS_URL not set, key-value state is kept in memory")
		return kv.NewMemoryStore(), nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	checks["redis"] = func(r *http.Request) error { return client.Health(r.Context()) }
	return kv.NewRedisStore(client.Client), nil
}

func (a *app) payloadStore(ctx context.Context, checks map[string]httptransport.HealthCheck) (store.Store, error) {
	pool, err := postgres.New(ctx, a.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pool == nil {
		a.log.Warn("DATABASE_URL not set, documents are kept in memory")
		return store.NewMemoryStore(), nil
	}
	a.closers = append(a.closers, pool.Close)
	checks["postgres"] = func(r *http.Request) error { return pool.Ping(r.Context()) }
	pg := store.NewPostgresStore(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("prepare payload schema: %w", err)
	}
	return pg, nil
}

func (a *app) auditSink(ctx context.Context) (audit.Sink, error) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		return audit.NewMemorySink(), nil
	}
	sink, err := audit.NewKafkaSink(ctx, a.cfg.Kafka.Brokers, a.cfg.Kafka.AuditTopic, audit.WithKafkaLogger(a.log))
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	a.closers = append(a.closers, sink.Close)
	return sink, nil
}

// factory registers every parser whose keys are available, in precedence
// order.
func (a *app) factory(m *metrics.Metrics) (*factory.Factory, error) {
	f := factory.New(factory.WithLogger(a.log), factory.WithMetrics(m))
	var ps []parsers.Parser
	if a.keys != nil {
		ps = append(ps,
			parsers.NewHealthCertificateParser(a.keys),
			parsers.NewProviderTokenParser(a.keys),
		)
	} else {
		a.log.Warn("BACKEND_URL not set, provider tokens and health certificates are not accepted")
	}
	if a.cfg.VoucherPublicKey != "" {
		key, err := parsePEMPublicKey(a.cfg.VoucherPublicKey)
		if err != nil {
			return nil, fmt.Errorf("VOUCHER_PUBLIC_KEY: %w", err)
		}
		ps = append(ps, parsers.NewVoucherTokenParser(key))
	}
	var labKey ed25519.PublicKey
	if a.cfg.LabPublicKey != "" {
		raw, err := base64.StdEncoding.DecodeString(a.cfg.LabPublicKey)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, errors.New("LAB_PUBLIC_KEY must be a base64 ed25519 public key")
		}
		labKey = ed25519.PublicKey(raw)
	}
	ps = append(ps, parsers.NewLabQueryParser(labKey))

	for _, p := range ps {
		if err := f.Register(p); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func parsePEMPublicKey(s string) (crypto.PublicKey, error) {
	block, _ := pem.Decode([]byte(s))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParsePKIXPublicKey(block.Bytes)
}

// start launches key refresh and daily revalidation. Both stop with ctx or
// when the app is closed.
func (a *app) start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	if a.keys != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.keys.Run(ctx)
		}()
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.revalidator.Run(ctx, a.cfg.RevalidationInterval)
	}()
}

// close waits for the background loops and releases resources in reverse
// order of acquisition.
func (a *app) close() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
