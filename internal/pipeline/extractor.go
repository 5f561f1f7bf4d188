package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/granule-extract/internal/domain"
	"github.com/couchcryptid/granule-extract/internal/observability"
)

// Extractor reads one granule through a DumpToolClient.
type Extractor struct {
	client  DumpToolClient
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExtractor creates an Extractor for the granule at path.
func NewExtractor(client DumpToolClient, path string, logger *slog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{client: client, path: path, logger: logger, metrics: metrics}
}

// DescribeHeader loads and parses the granule's structural description.
func (e *Extractor) DescribeHeader(ctx context.Context) (*domain.Header, error) {
	start := domain.Now()
	raw, err := e.client.DescribeHeader(ctx, e.path)
	e.metrics.DumpToolDuration.WithLabelValues("header").Observe(domain.Since(start).Seconds())
	if err != nil {
		return nil, asExtractionError(e.path, "describe header", err)
	}

	h, err := domain.ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("header loaded",
		"granule", e.path,
		"dimensions", len(h.Dimensions),
		"attributes", len(h.Attributes),
		"variables", len(h.Variables),
	)
	return h, nil
}

// Extract returns the values of a variable or coordinate dimension in source order.
func (e *Extractor) Extract(ctx context.Context, name string) ([]float64, error) {
	start := domain.Now()
	raw, err := e.client.ExtractRaw(ctx, e.path, name)
	e.metrics.DumpToolDuration.WithLabelValues("extract").Observe(domain.Since(start).Seconds())
	if err != nil {
		return nil, asExtractionError(name, "dump tool", err)
	}
	return domain.ParseDataSection(name, raw)
}

// asExtractionError keeps errors that already carry the extraction kind and
// wraps anything else.
func asExtractionError(name, reason string, err error) error {
	if errors.Is(err, domain.ErrExtractionIO) {
		return err
	}
	return &domain.ExtractionIOError{Name: name, Reason: reason, Err: err}
}
