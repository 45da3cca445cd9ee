package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/config"
	"github.com/v0idness/archipanion-ve/internal/domain/content"
	"github.com/v0idness/archipanion-ve/internal/domain/retrievable"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
	"github.com/v0idness/archipanion-ve/internal/operator"
)

// Deps are the collaborators shared by every pipeline.
type Deps struct {
	Factory    content.Factory
	Segmenters *metamodel.Registry[SegmenterFactory]
	Logger     *zap.Logger
	// Source overrides the configured source. Used in tests.
	Source operator.Operator[Asset]
}

type extractorStage struct {
	field      *metamodel.Field
	persisting bool
}

// Pipeline is a validated ingestion graph description for one schema:
// source, decoder, segmenters, persister and field extractors in configured order.
type Pipeline struct {
	name       string
	schema     *metamodel.Schema
	source     operator.Operator[Asset]
	types      []content.Type
	segmenters []Segmenter
	extractors []extractorStage
	ictx       *metamodel.IndexContext
	logger     *zap.Logger
}

// NewPipeline resolves every stage of cfg. Any setup error is returned;
// nothing is ingested by a pipeline that failed to build.
func NewPipeline(schema *metamodel.Schema, cfg *config.PipelineConfig, deps Deps) (*Pipeline, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("schema", schema.Name()), zap.String("pipeline", cfg.Name))
	p := &Pipeline{
		name:   cfg.Name,
		schema: schema,
		source: deps.Source,
		logger: logger,
		ictx: &metamodel.IndexContext{
			ContentFactory: deps.Factory,
			Logger:         logger,
			Parallelism:    cfg.Parallelism,
			BatchSize:      cfg.BatchSize,
		},
	}

	if p.source == nil {
		src, err := newSource(cfg.Source, logger)
		if err != nil {
			return nil, err
		}
		p.source = src
	}

	for _, raw := range cfg.Decoder.Types {
		t, err := content.ParseType(raw)
		if err != nil {
			return nil, fmt.Errorf("decoder: %w", err)
		}
		p.types = append(p.types, t)
	}
	if _, err := NewDecoder(deps.Factory, p.types, nil, logger); err != nil {
		return nil, err
	}

	segmenters := deps.Segmenters
	if segmenters == nil {
		segmenters = NewSegmenterRegistry()
	}
	for _, sc := range cfg.Segmenters {
		factory, err := segmenters.Lookup(sc.Type)
		if err != nil {
			return nil, err
		}
		seg, err := factory(p.ictx, sc.Parameters)
		if err != nil {
			return nil, fmt.Errorf("segmenter %s: %w", sc.Type, err)
		}
		p.segmenters = append(p.segmenters, seg)
	}

	for _, ec := range cfg.Extractors {
		f, err := schema.Field(ec.Field)
		if err != nil {
			return nil, err
		}
		p.extractors = append(p.extractors, extractorStage{field: f, persisting: !ec.Transient})
	}

	// extractors validate their field binding on construction
	if _, err := p.assemble(noProgress{}); err != nil {
		return nil, err
	}
	return p, nil
}

func newSource(cfg config.SourceConfig, logger *zap.Logger) (operator.Operator[Asset], error) {
	switch cfg.Type {
	case config.SourceFilesystem:
		return NewFileSystemEnumerator(cfg.Path, logger), nil
	case config.SourceMinio:
		src, err := NewMinioEnumerator(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Schema returns the schema the pipeline writes to.
func (p *Pipeline) Schema() *metamodel.Schema { return p.schema }

func (p *Pipeline) assemble(progress Progress) (operator.Operator[*retrievable.Ingested], error) {
	dec, err := NewDecoder(p.ictx.ContentFactory, p.types, progress, p.logger)
	if err != nil {
		return nil, err
	}
	stream := dec.Decode(p.source)
	for _, seg := range p.segmenters {
		stream = seg.Segment(stream)
	}
	stream = NewPersister(p.schema.Connection().RetrievableWriter(), progress, p.logger).Persist(stream)
	for _, st := range p.extractors {
		ext, err := st.field.Extractor(stream, p.ictx, st.persisting)
		if err != nil {
			return nil, fmt.Errorf("extractor for field %s: %w", st.field.Name(), err)
		}
		stream = ext
	}
	return stream, nil
}

// Run ingests everything the source yields. Every retrievable that leaves the last
// stage counts as processed. Per-item failures do not stop the run.
func (p *Pipeline) Run(ctx context.Context, progress Progress) error {
	if progress == nil {
		progress = noProgress{}
	}
	graph, err := p.assemble(progress)
	if err != nil {
		return err
	}
	p.logger.Info("Pipeline started")
	in, wait := operator.Start(ctx, graph, 0)
	n := 0
	for range in {
		n++
		progress.Processed()
	}
	if err := wait(); err != nil {
		p.logger.Error("Pipeline aborted", zap.Int("processed", n), zap.Error(err))
		return err
	}
	p.logger.Info("Pipeline finished", zap.Int("processed", n))
	return nil
}
