package analyzer

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/seo-optimizer/metachecker/fetcher"
)

const tracerName = "github.com/seo-optimizer/metachecker/analyzer"

// PageFetcher retrieves the HTML of a single page
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Recorder receives the outcome of every analysis (metrics)
type Recorder interface {
	ObserveAnalysis(result *AnalysisResult, elapsed time.Duration)
	ObserveFailure(err error, elapsed time.Duration)
}

// UsageCounter keeps long lived usage counters
type UsageCounter interface {
	RecordAnalysis(score int)
	RecordFailure()
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithRecorder reports analysis outcomes to r
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) { a.recorder = r }
}

// WithUsageCounter counts analyses in c
func WithUsageCounter(c UsageCounter) Option {
	return func(a *Analyzer) { a.usage = c }
}

// Analyzer fetches a page and runs the metadata pipeline over it
type Analyzer struct {
	fetcher  PageFetcher
	logger   *zap.Logger
	recorder Recorder
	usage    UsageCounter
	tracer   trace.Tracer
	now      func() time.Time
}

// New creates a new Analyzer instance
func New(f PageFetcher, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{
		fetcher: f,
		logger:  logger.With(zap.String("component", "analyzer")),
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze fetches url and returns its metadata analysis. Only the fetch
// can fail; once HTML is in hand the pipeline always produces a result.
func (a *Analyzer) Analyze(ctx context.Context, url string) (*AnalysisResult, error) {
	start := a.now()

	ctx, span := a.tracer.Start(ctx, "analyzer.Analyze", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()

	page, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		elapsed := a.now().Sub(start)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")

		a.logger.Warn("Page fetch failed",
			zap.String("url", url),
			zap.Duration("elapsed", elapsed),
			zap.Bool("timeout", errors.Is(err, fetcher.ErrTimeout)),
			zap.Error(err))

		if a.recorder != nil {
			a.recorder.ObserveFailure(err, elapsed)
		}
		if a.usage != nil {
			a.usage.RecordFailure()
		}
		return nil, err
	}

	result := Build(url, page.HTML, page.FetchedAt)
	elapsed := a.now().Sub(start)

	span.SetAttributes(
		attribute.Int("seo.score", result.Score),
		attribute.Int("seo.recommendations", len(result.Recommendations)),
		attribute.Int("seo.raw_tags", len(result.RawTags)),
	)

	a.logger.Info("Page analyzed",
		zap.String("url", url),
		zap.String("final_url", page.FinalURL),
		zap.Int("score", result.Score),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Duration("elapsed", elapsed))

	if a.recorder != nil {
		a.recorder.ObserveAnalysis(result, elapsed)
	}
	if a.usage != nil {
		a.usage.RecordAnalysis(result.Score)
	}

	return result, nil
}

// Build runs the pipeline over already fetched HTML: extract, evaluate,
// then score, recommend and compose previews. It is pure apart from the
// timestamp it is handed.
func Build(pageURL, doc string, fetchedAt time.Time) *AnalysisResult {
	ex := Extract(doc)
	tags := EvaluateAll(ex)

	recommendations := Recommend(tags)
	score := Score(tags)
	previews := ComposePreviews(pageURL, ex)

	return &AnalysisResult{
		URL:             pageURL,
		FetchedAt:       fetchedAt.UTC(),
		Score:           score,
		Grade:           Grade(score),
		Tags:            tags,
		Recommendations: recommendations,
		Summary:         Summarize(recommendations),
		GooglePreview:   previews.Google,
		FacebookPreview: previews.Facebook,
		TwitterPreview:  previews.Twitter,
		LinkedInPreview: previews.LinkedIn,
		RawTags:         ex.RawTags,
	}
}
