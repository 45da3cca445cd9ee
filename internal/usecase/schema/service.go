// Package schema describes and initializes the configured schemas.
package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/domain"
	"github.com/v0idness/archipanion-ve/internal/metamodel"
)

// FieldInfo describes one schema field.
type FieldInfo struct {
	Name           string            `json:"name"`
	Analyser       string            `json:"analyser"`
	ContentTypes   []string          `json:"content_types"`
	DescriptorType string            `json:"descriptor_type"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Initialized    bool              `json:"initialized"`
	// Descriptors is nil when the backend cannot count.
	Descriptors *int `json:"descriptors,omitempty"`
}

// Info describes a schema and its storage state.
type Info struct {
	Name        string      `json:"name"`
	Connection  string      `json:"connection"`
	Initialized bool        `json:"initialized"`
	Fields      []FieldInfo `json:"fields"`
	Pipelines   []string    `json:"pipelines"`
}

// Service reports on and initializes schemas.
type Service struct {
	catalog *Catalog
	logger  *zap.Logger
}

// New creates a schema service.
func New(catalog *Catalog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, logger: logger}
}

// List describes every schema.
func (s *Service) List(ctx context.Context) []Info {
	names := s.catalog.Names()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		info, err := s.About(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out
}

// About describes one schema, probing storage for its initialization state.
func (s *Service) About(ctx context.Context, name string) (Info, error) {
	sc, err := s.catalog.Schema(name)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Name:        sc.Name(),
		Connection:  sc.Connection().Description(),
		Initialized: sc.Connection().RetrievableInitializer().IsInitialized(ctx),
		Fields:      []FieldInfo{},
		Pipelines:   s.catalog.Pipelines(name),
	}
	for _, f := range sc.Fields() {
		a := f.Analyser()
		types := make([]string, 0, len(a.ContentTypes()))
		for _, t := range a.ContentTypes() {
			types = append(types, t.String())
		}
		fi := FieldInfo{
			Name:           f.Name(),
			Analyser:       a.Name(),
			ContentTypes:   types,
			DescriptorType: a.DescriptorType(),
			Parameters:     f.Parameters(),
			Initialized:    f.Initializer().IsInitialized(ctx),
		}
		if fi.Initialized {
			fi.Descriptors = s.count(ctx, f)
		}
		info.Fields = append(info.Fields, fi)
	}
	return info, nil
}

// Initialize prepares storage for the retrievable entity and every field.
// It returns how many entities were newly initialized.
func (s *Service) Initialize(ctx context.Context, name string) (int, error) {
	sc, err := s.catalog.Schema(name)
	if err != nil {
		return 0, err
	}
	created := 0
	ri := sc.Connection().RetrievableInitializer()
	if !ri.IsInitialized(ctx) {
		if err := ri.Initialize(ctx); err != nil {
			return created, fmt.Errorf("initialize retrievables of %s: %w", name, err)
		}
		created++
	}
	for _, f := range sc.Fields() {
		fi := f.Initializer()
		if fi.IsInitialized(ctx) {
			continue
		}
		if err := fi.Initialize(ctx); err != nil {
			return created, fmt.Errorf("initialize field %s.%s: %w", name, f.Name(), err)
		}
		created++
	}
	s.logger.Info("Schema initialized", zap.String("schema", name), zap.Int("created", created))
	return created, nil
}

// Drop removes the stored data of every field and then the retrievables.
// The schema stays configured and can be initialized again.
// It returns how many entities were torn down.
func (s *Service) Drop(ctx context.Context, name string) (int, error) {
	sc, err := s.catalog.Schema(name)
	if err != nil {
		return 0, err
	}
	initializers := make([]metamodel.Initializer, 0, len(sc.Fields())+1)
	labels := make([]string, 0, cap(initializers))
	for _, f := range sc.Fields() {
		initializers = append(initializers, f.Initializer())
		labels = append(labels, "field "+name+"."+f.Name())
	}
	initializers = append(initializers, sc.Connection().RetrievableInitializer())
	labels = append(labels, "retrievables of "+name)

	// Reject the whole drop before touching storage if any entity cannot be removed.
	for i, in := range initializers {
		if _, ok := in.(metamodel.Deinitializer); !ok {
			return 0, fmt.Errorf("drop %s: %w", labels[i], domain.ErrUnsupportedOperation)
		}
	}

	// Uninitialized entities are torn down too so stray data goes with them,
	// but only initialized ones are counted.
	dropped := 0
	for i, in := range initializers {
		was := in.IsInitialized(ctx)
		if err := in.(metamodel.Deinitializer).Deinitialize(ctx); err != nil {
			return dropped, fmt.Errorf("drop %s: %w", labels[i], err)
		}
		if was {
			dropped++
		}
	}
	s.logger.Warn("Schema dropped", zap.String("schema", name), zap.Int("dropped", dropped))
	return dropped, nil
}

func (s *Service) count(ctx context.Context, f *metamodel.Field) *int {
	c, ok := f.Reader().(metamodel.Counter)
	if !ok {
		return nil
	}
	n, err := c.Count(ctx)
	if err != nil {
		s.logger.Warn("Failed to count descriptors",
			zap.String("field", f.Name()), zap.Error(err))
		return nil
	}
	return &n
}
