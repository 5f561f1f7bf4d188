package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/granule-extract/internal/domain"
)

// Resolver maps dimension names to their coordinate values. Coordinates are
// cached for the lifetime of the resolver, i.e. one granule.
type Resolver struct {
	header    *domain.Header
	extractor *Extractor
	logger    *slog.Logger
	cache     map[string][]float64
}

// NewResolver creates a Resolver over a parsed header.
func NewResolver(h *domain.Header, e *Extractor, logger *slog.Logger) *Resolver {
	return &Resolver{
		header:    h,
		extractor: e,
		logger:    logger,
		cache:     make(map[string][]float64, len(h.Dimensions)),
	}
}

// Resolve returns the coordinates of every dimension in shape. A dimension
// without a coordinate variable gets index coordinates 0..n-1.
func (r *Resolver) Resolve(ctx context.Context, shape []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(shape))
	for _, dim := range shape {
		if coords, ok := r.cache[dim]; ok {
			out[dim] = coords
			continue
		}

		length, ok := r.header.Dimensions[dim]
		if !ok {
			return nil, &domain.UnknownDimensionError{Dimension: dim}
		}

		var coords []float64
		if r.header.HasCoordinateVariable(dim) {
			values, err := r.extractor.Extract(ctx, dim)
			if err != nil {
				return nil, err
			}
			if len(values) != length {
				return nil, &domain.ExtractionIOError{
					Name:   dim,
					Reason: fmt.Sprintf("resolved %d coordinates, dimension declares %d", len(values), length),
				}
			}
			coords = values
		} else {
			r.logger.Debug("dimension has no coordinate variable, using indices", "dimension", dim, "length", length)
			coords = indexCoordinates(length)
		}

		r.cache[dim] = coords
		out[dim] = coords
	}
	return out, nil
}

// Describe builds the extraction metadata of a declared variable.
func (r *Resolver) Describe(ctx context.Context, v domain.VariableDescriptor) (domain.VariableMetadata, error) {
	coords, err := r.Resolve(ctx, v.Shape)
	if err != nil {
		var unknown *domain.UnknownDimensionError
		if errors.As(err, &unknown) {
			unknown.Variable = v.Name
		}
		return domain.VariableMetadata{}, err
	}

	points := 1
	for _, d := range v.Shape {
		points *= len(coords[d])
	}
	return domain.VariableMetadata{
		Variable: v.Name,
		Type:     v.Type,
		Shape:    v.ShapeString(),
		Dims:     v.Shape,
		Coords:   coords,
		Points:   points,
	}, nil
}

func indexCoordinates(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
