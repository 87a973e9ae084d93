package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/seo-optimizer/metachecker/analyzer"
	"github.com/seo-optimizer/metachecker/fetcher"
	"github.com/seo-optimizer/metachecker/metrics"
	"github.com/seo-optimizer/metachecker/middleware"
	"github.com/seo-optimizer/metachecker/stats"
)

// Analyzer runs a full analysis for one URL
type Analyzer interface {
	Analyze(ctx context.Context, url string) (*analyzer.AnalysisResult, error)
}

// Options wires the router. Analyzer and Tracker are required.
type Options struct {
	Analyzer    Analyzer
	Tracker     *stats.Tracker
	Usage       *stats.Storage
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Collector
	MetricsPath string
	DevMode     bool
	Logger      *zap.Logger
}

type analyzeRequest struct {
	URL string `json:"url" binding:"required,http_url"`
}

type fieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type monthlyUsage struct {
	Month        string  `json:"month"`
	Analyses     int     `json:"analyses"`
	Failures     int     `json:"failures"`
	AverageScore float64 `json:"averageScore"`
}

type statisticsResponse struct {
	stats.Statistics
	CurrentMonth *monthlyUsage `json:"currentMonth,omitempty"`
}

type server struct {
	analyzer Analyzer
	tracker  *stats.Tracker
	usage    *stats.Storage
	devMode  bool
	logger   *zap.Logger
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName reports validation errors under the JSON name of a field
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// NewRouter builds the gin engine with middleware and routes
func NewRouter(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		analyzer: opts.Analyzer,
		tracker:  opts.Tracker,
		usage:    opts.Usage,
		devMode:  opts.DevMode,
		logger:   logger.With(zap.String("component", "api")),
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorHandler(logger))
	r.Use(middleware.AccessLog(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware())
	}
	r.Use(middleware.CORS())
	r.Use(middleware.Stats(opts.Tracker, logger))

	api := r.Group("/api")
	{
		api.GET("/health", s.health)

		analyze := []gin.HandlerFunc{s.analyze}
		if opts.RateLimiter != nil {
			analyze = append([]gin.HandlerFunc{opts.RateLimiter.RateLimit()}, analyze...)
		}
		api.POST("/analyze", analyze...)

		api.GET("/statistics", s.statistics)
	}

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}

	return r
}

func (s *server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (s *server) analyze(c *gin.Context) {
	var request analyzeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.logger.Debug("Rejected analyze request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": validationDetails(err),
		})
		return
	}

	c.Set(middleware.AnalyzedURLKey, request.URL)

	result, err := s.analyzer.Analyze(c.Request.Context(), request.URL)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, fetcher.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *server) statistics(c *gin.Context) {
	resp := statisticsResponse{Statistics: s.tracker.Snapshot(s.devMode)}

	if s.usage != nil {
		current := s.usage.GetCurrentStats()
		resp.CurrentMonth = &monthlyUsage{
			Month:        s.usage.CurrentMonth(),
			Analyses:     current.Analyses,
			Failures:     current.Failures,
			AverageScore: current.AverageScore(),
		}
	}

	c.JSON(http.StatusOK, resp)
}

// validationDetails lists what was wrong with the request body
func validationDetails(err error) []fieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []fieldError{{
			Field:   "body",
			Rule:    "json",
			Message: "request body must be a JSON object with a url field",
		}}
	}

	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: ruleMessage(fe),
		})
	}
	return details
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "http_url":
		return fe.Field() + " must be a valid http or https URL"
	default:
		return fe.Field() + " failed the " + fe.Tag() + " check"
	}
}
