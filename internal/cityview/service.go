// Package cityview answers "show me this city" requests: it resolves the city
// against the configured table, loads both documents and assembles the report.
package cityview

import (
	"context"
	"errors"
	"fmt"

	"github.com/joelkehle/roimap/internal/cityconfig"
	"github.com/joelkehle/roimap/internal/docsource"
	"github.com/joelkehle/roimap/internal/report"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrUnknownCity   = errors.New("unknown city")
	ErrUnknownRegion = errors.New("unknown region")
)

type Service struct {
	cities    *cityconfig.Table
	loader    *docsource.Loader
	assembler *report.Assembler
	tracer    trace.Tracer
	log       zerolog.Logger
}

func New(cities *cityconfig.Table, loader *docsource.Loader, assembler *report.Assembler, tracer trace.Tracer, log zerolog.Logger) *Service {
	return &Service{
		cities:    cities,
		loader:    loader,
		assembler: assembler,
		tracer:    tracer,
		log:       log.With().Str("component", "cityview").Logger(),
	}
}

func (s *Service) Cities() []cityconfig.City {
	return s.cities.Cities()
}

// Report loads and assembles the report for a configured city. Unknown keys
// fail with ErrUnknownCity before any document is fetched.
func (s *Service) Report(ctx context.Context, cityKey string) (*report.Result, error) {
	city, ok := s.cities.Lookup(cityKey)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCity, cityKey)
	}

	ctx, span := s.tracer.Start(ctx, "cityview.Report", trace.WithAttributes(attribute.String("city", city.ID)))
	defer span.End()

	docs, err := s.loader.Load(ctx, city.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load documents")
		return nil, err
	}

	_, asmSpan := s.tracer.Start(ctx, "report.Assemble")
	res, err := s.assembler.Assemble(docs.Geometry, docs.Report, city.Name, city.ID)
	if err != nil {
		asmSpan.RecordError(err)
		asmSpan.SetStatus(codes.Error, "assemble")
		asmSpan.End()
		span.SetStatus(codes.Error, "assemble")
		return nil, err
	}
	asmSpan.SetAttributes(
		attribute.Int("regions", len(res.Report.Regions)),
		attribute.Int("warnings", len(res.Warnings)),
	)
	asmSpan.End()

	s.log.Debug().Str("city", city.ID).Int("regions", len(res.Report.Regions)).Int("warnings", len(res.Warnings)).Msg("report assembled")
	return res, nil
}

// Region assembles the city report and returns it together with one region.
func (s *Service) Region(ctx context.Context, cityKey, regionID string) (*report.Report, *report.Region, error) {
	res, err := s.Report(ctx, cityKey)
	if err != nil {
		return nil, nil, err
	}
	region, ok := res.Report.FindRegion(regionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q in %s", ErrUnknownRegion, regionID, res.Report.City)
	}
	return res.Report, region, nil
}
