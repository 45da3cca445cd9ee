package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/analyser/averagecolor"
	"github.com/v0idness/archipanion-ve/internal/analyser/embedding"
	"github.com/v0idness/archipanion-ve/internal/analyser/external"
	"github.com/v0idness/archipanion-ve/internal/analyser/filemetadata"
	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/content/cache"
	dbRedis "github.com/v0idness/archipanion-ve/internal/db/redis"
	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/ingest"
	"github.com/v0idness/archipanion-ve/internal/ingest/execution"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/metrics"
	"github.com/v0idness/archipanion-ve/internal/repository/embcache"
	"github.com/v0idness/archipanion-ve/internal/repository/memory"
	"github.com/v0idness/archipanion-ve/internal/repository/redisconn"
	"github.com/v0idness/archipanion-ve/internal/retrieve"
	"github.com/v0idness/archipanion-ve/internal/transport/feature"
	openaiEmb "github.com/v0idness/archipanion-ve/internal/transport/openai"
	embeddinguc "github.com/v0idness/archipanion-ve/internal/usecase/embedding"
	extractuc "github.com/v0idness/archipanion-ve/internal/usecase/extract"
	healthuc "github.com/v0idness/archipanion-ve/internal/usecase/health"
	queryuc "github.com/v0idness/archipanion-ve/internal/usecase/query"
	schemauc "github.com/v0idness/archipanion-ve/internal/usecase/schema"
)

// app is the composition root shared by every command.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	store    *dbRedis.Store // nil with the memory driver
	cache    *cache.Cache
	catalog  *schemauc.Catalog
	executor *execution.Server

	schemas *schemauc.Service
	query   *queryuc.Service
	extract *extractuc.Service
	health  *healthuc.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) (err error) {
	cfg, logger := a.cfg, a.logger

	if cfg.Database.Driver == config.DriverRedis {
		if a.store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		}); err != nil {
			return fmt.Errorf("create database store: %w", err)
		}
		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err = a.store.WaitForReady(ctx, timeout); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}
		logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))
	}

	if a.cache, err = cache.New(cache.Config{
		Dir:           cfg.Cache.Path,
		SweepInterval: time.Duration(cfg.Cache.SweepIntervalMS) * time.Millisecond,
		Compress:      cfg.Cache.Compress,
	}, logger); err != nil {
		return fmt.Errorf("open content cache: %w", err)
	}

	features := feature.NewClient(feature.Config{
		Host:              cfg.Features.Host,
		Port:              cfg.Features.Port,
		Timeout:           time.Duration(cfg.Features.TimeoutSec) * time.Second,
		RequestsPerSecond: cfg.Features.RequestsPerSecond,
		Logger:            logger,
	})
	vectorizers := a.buildVectorizers()
	analysers := newAnalyserRegistry(features, vectorizers, logger)

	a.catalog = schemauc.NewCatalog()
	segmenters := ingest.NewSegmenterRegistry()
	for i := range cfg.Schemas {
		if err = a.addSchema(&cfg.Schemas[i], analysers, segmenters); err != nil {
			return err
		}
	}

	a.executor = execution.NewServer(execution.Config{
		Workers:    cfg.Execution.Workers,
		QueueSize:  cfg.Execution.QueueSize,
		JobHistory: cfg.Execution.JobHistory,
		JobTTL:     time.Duration(cfg.Execution.JobTTLSec) * time.Second,
	}, logger)

	a.schemas = schemauc.New(a.catalog, logger)
	a.extract = extractuc.New(a.catalog, a.executor)
	if a.query, err = queryuc.New(a.catalog,
		retrieve.NewTransformerRegistry(), retrieve.NewAggregatorRegistry(), a.cache, logger); err != nil {
		return err
	}

	var pinger healthuc.Pinger = nopPinger{}
	if a.store != nil {
		pinger = a.store
	}
	a.health = healthuc.New(pinger, 0)
	a.registerHealth(features, vectorizers)
	return nil
}

// buildVectorizers assembles one embedder chain per configured vectorizer:
// OpenAI -> Cached -> Instrumented -> Prepared.
func (a *app) buildVectorizers() map[string]embedding.Vectorizer {
	out := make(map[string]embedding.Vectorizer, len(a.cfg.Embedding.Vectorizers))
	for name, vc := range a.cfg.Embedding.Vectorizers {
		prov := a.cfg.Embedding.Providers[vc.Provider]
		var e domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:            prov.APIKey,
			BaseURL:           prov.BaseURL,
			Model:             vc.Model,
			Dimensions:        vc.Dimensions,
			Provider:          vc.Provider,
			RequestsPerSecond: prov.RequestsPerSecond,
			Logger:            a.logger,
		})
		if a.store != nil && vc.CacheTTLSec > 0 {
			e = embcache.New(e, a.store, embcache.Config{
				KeyPrefix: a.cfg.Database.KeyPrefix,
				Namespace: name,
				TTL:       time.Duration(vc.CacheTTLSec) * time.Second,
				Entries:   vc.CacheEntries,
			}, metrics.EmbeddingCacheTotal, a.logger)
		}
		e = embeddinguc.NewInstrumentedEmbedder(e, name, vc.Model, a.logger)
		// Outermost, so the cache key is the prepared text.
		e = domain.NewPreparedEmbedder(e, domain.TextPreparation{
			Instruction: vc.Instruction,
			MaxRunes:    vc.MaxInputRunes,
		})
		out[name] = embedding.Vectorizer{Embedder: e, Dimensions: vc.Dimensions}
		a.logger.Info("Vectorizer created",
			zap.String("name", name),
			zap.String("provider", vc.Provider),
			zap.String("model", vc.Model),
			zap.Int("dimensions", vc.Dimensions),
		)
	}
	return out
}

func newAnalyserRegistry(
	features external.FeatureClient, vectorizers map[string]embedding.Vectorizer, logger *zap.Logger,
) *metamodel.Registry[metamodel.AnalyserFactory] {
	r := metamodel.NewRegistry[metamodel.AnalyserFactory]("analyser")
	_ = r.Register(averagecolor.Name, averagecolor.Factory)
	_ = r.Register(filemetadata.Name, filemetadata.Factory)
	_ = r.Register(external.NameCLIPImage, external.CLIPImageFactory(features, logger))
	_ = r.Register(external.NameCLIPText, external.CLIPTextFactory(features, logger))
	_ = r.Register(embedding.Name, embedding.VectorizerFactory(vectorizers))
	return r
}

func (a *app) connect(schema string) metamodel.Connection {
	if a.store == nil {
		return memory.New(schema, a.logger)
	}
	return redisconn.New(a.store, schema, redisconn.Config{
		KeyPrefix:       a.cfg.Database.KeyPrefix,
		HNSWM:           a.cfg.Database.HNSWM,
		HNSWEFConstruct: a.cfg.Database.HNSWEFConstruct,
	}, a.logger)
}

func (a *app) addSchema(
	sc *config.SchemaConfig,
	analysers *metamodel.Registry[metamodel.AnalyserFactory],
	segmenters *metamodel.Registry[ingest.SegmenterFactory],
) error {
	s := metamodel.NewSchema(sc.Name, a.connect(sc.Name))
	for _, fc := range sc.Fields {
		factory, err := analysers.Lookup(fc.Analyser)
		if err != nil {
			return fmt.Errorf("schema %s field %s: %w", sc.Name, fc.Name, err)
		}
		an, err := factory(fc.Parameters)
		if err != nil {
			return fmt.Errorf("schema %s field %s: %w", sc.Name, fc.Name, err)
		}
		if _, err := s.AddField(fc.Name, an, fc.Parameters); err != nil {
			return fmt.Errorf("schema %s: %w", sc.Name, err)
		}
	}

	pipelines := make([]*ingest.Pipeline, 0, len(sc.Pipelines))
	for i := range sc.Pipelines {
		p, err := ingest.NewPipeline(s, &sc.Pipelines[i], ingest.Deps{
			Factory:    a.cache,
			Segmenters: segmenters,
			Logger:     a.logger,
		})
		if err != nil {
			return fmt.Errorf("schema %s pipeline %s: %w", sc.Name, sc.Pipelines[i].Name, err)
		}
		pipelines = append(pipelines, p)
	}
	if err := a.catalog.Add(s, pipelines...); err != nil {
		return err
	}
	a.logger.Info("Schema loaded",
		zap.String("schema", sc.Name),
		zap.String("connection", s.Connection().Description()),
		zap.Int("fields", len(sc.Fields)),
		zap.Int("pipelines", len(pipelines)),
	)
	return nil
}

// registerHealth adds the feature server and every vectorizer used by a field.
func (a *app) registerHealth(features *feature.Client, vectorizers map[string]embedding.Vectorizer) {
	clip := false
	for _, sc := range a.cfg.Schemas {
		for _, fc := range sc.Fields {
			if fc.Analyser == external.NameCLIPImage || fc.Analyser == external.NameCLIPText {
				clip = true
			}
		}
	}
	if clip {
		a.health.Register("feature", features)
	}
	names := make([]string, 0, len(vectorizers))
	for name := range vectorizers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if hc, ok := vectorizers[name].Embedder.(domain.HealthChecker); ok {
			a.health.Register("vectorizer:"+name, hc)
		}
	}
}

func (a *app) close() {
	if a.executor != nil {
		a.executor.Close()
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.logger.Warn("Closing connections", zap.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Closing content cache", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

type nopPinger struct{}

func (nopPinger) Ping(context.Context) error { return nil }
