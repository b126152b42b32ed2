package http

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "covidcli/internal/errors"
	custommw "covidcli/internal/middleware"
	"covidcli/internal/services"
	"covidcli/pkg/contracts/domain"
)

// maxThresholdCases bounds the cases query parameter
const maxThresholdCases = int64(1) << 40

// Headers repeating the stale signal on CSV responses
const (
	HeaderStale      = "X-Dataset-Stale"
	HeaderSourceDate = "X-Dataset-Source-Date"
)

// SliceResponse is the JSON body of every slice endpoint
type SliceResponse struct {
	Granularity string                   `json:"granularity"`
	Stale       bool                     `json:"stale"`
	SourceDate  string                   `json:"source_date"`
	LoadedAt    time.Time                `json:"loaded_at"`
	Keys        []string                 `json:"keys"`
	Columns     []string                 `json:"columns"`
	Thresholds  []int                    `json:"thresholds"`
	Count       int                      `json:"count"`
	Duplicates  int                      `json:"duplicates"`
	Data        []map[string]interface{} `json:"data"`
}

// ThresholdResponse is the JSON body of the threshold endpoint
type ThresholdResponse struct {
	Key        string `json:"key"`
	Cases      int64  `json:"cases"`
	Date       string `json:"date"`
	Stale      bool   `json:"stale"`
	SourceDate string `json:"source_date"`
}

// SummaryResponse is the JSON body of the summary endpoint
type SummaryResponse struct {
	*services.SummaryResult
	SourceDate string `json:"source_date"`
	Count      int    `json:"count"`
}

// DatasetHandler serves the derived slices
type DatasetHandler struct {
	service      DatasetServiceInterface
	params       *custommw.ParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler with RFC 7807 error handling
func NewDatasetHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &DatasetHandler{
		service:      service,
		params:       custommw.NewParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/nation", h.GetNation)
	r.Get("/nation/threshold", h.GetThreshold)

	r.Get("/states", h.GetStates)
	r.Route("/states/{uf}", func(r chi.Router) {
		r.Use(h.params.Require("uf", "required,uf"))
		r.Get("/", h.GetState)
		r.Get("/cities", h.GetStateCities)
	})

	r.With(h.params.Require("code", "required,codmun")).Get("/cities/{code}", h.GetCity)

	r.Get("/summary/{granularity}", h.GetSummary)

	return r
}

// GetNation handles GET /nation
func (h *DatasetHandler) GetNation(w http.ResponseWriter, r *http.Request) {
	h.serveSlice(w, r, "fetching nation", func(ctx context.Context) (*services.SliceResult, error) {
		return h.service.Nation(ctx)
	})
}

// GetStates handles GET /states
func (h *DatasetHandler) GetStates(w http.ResponseWriter, r *http.Request) {
	h.serveSlice(w, r, "fetching states", func(ctx context.Context) (*services.SliceResult, error) {
		return h.service.States(ctx)
	})
}

// GetState handles GET /states/{uf}
func (h *DatasetHandler) GetState(w http.ResponseWriter, r *http.Request) {
	uf := chi.URLParam(r, "uf")
	h.serveSlice(w, r, "fetching state", func(ctx context.Context) (*services.SliceResult, error) {
		return h.service.State(ctx, uf)
	})
}

// GetStateCities handles GET /states/{uf}/cities
func (h *DatasetHandler) GetStateCities(w http.ResponseWriter, r *http.Request) {
	uf := chi.URLParam(r, "uf")
	h.serveSlice(w, r, "fetching cities", func(ctx context.Context) (*services.SliceResult, error) {
		return h.service.Cities(ctx, uf)
	})
}

// GetCity handles GET /cities/{code}
func (h *DatasetHandler) GetCity(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	h.serveSlice(w, r, "fetching city", func(ctx context.Context) (*services.SliceResult, error) {
		return h.service.City(ctx, code)
	})
}

// GetThreshold handles GET /nation/threshold?cases=N[&uf=XX]
func (h *DatasetHandler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	cases, ok := h.params.QueryInt64(w, r, "cases", 0, maxThresholdCases, true, 0)
	if !ok {
		return
	}
	uf, ok := h.params.QueryUF(w, r, "uf")
	if !ok {
		return
	}

	res, err := h.service.Threshold(r.Context(), cases, uf)
	if err != nil {
		h.fail(w, r, "failed to find threshold date", err)
		return
	}

	render.JSON(w, r, ThresholdResponse{
		Key:        res.Key,
		Cases:      res.Cases,
		Date:       res.Date.Format(domain.DateLayout),
		Stale:      res.Stale,
		SourceDate: formatDate(res.SourceDate),
	})
}

// GetSummary handles GET /summary/{granularity}
func (h *DatasetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	g, err := domain.ParseGranularity(chi.URLParam(r, "granularity"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("granularity", "granularity must be one of: nation, state, city"))
		return
	}

	res, err := h.service.Summary(r.Context(), g)
	if err != nil {
		h.fail(w, r, "failed to summarize", err)
		return
	}

	render.JSON(w, r, SummaryResponse{
		SummaryResult: res,
		SourceDate:    formatDate(res.SourceDate),
		Count:         len(res.Entities),
	})
}

func (h *DatasetHandler) serveSlice(w http.ResponseWriter, r *http.Request, msg string, fn func(context.Context) (*services.SliceResult, error)) {
	format, ok := h.params.QueryEnum(w, r, "format", []string{"json", "csv"}, "json")
	if !ok {
		return
	}

	h.logger.DebugContext(r.Context(), msg,
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("format", format))

	res, err := fn(r.Context())
	if err != nil {
		h.fail(w, r, "failed to build slice", err)
		return
	}

	if format == "csv" {
		h.writeCSV(w, r, res)
		return
	}

	s := res.Slice
	columns := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		columns[i] = string(c)
	}
	render.JSON(w, r, SliceResponse{
		Granularity: string(s.Granularity),
		Stale:       res.Stale,
		SourceDate:  formatDate(res.SourceDate),
		LoadedAt:    res.LoadedAt,
		Keys:        nonNil(s.Keys),
		Columns:     columns,
		Thresholds:  s.Thresholds,
		Count:       s.Len(),
		Duplicates:  len(s.Duplicates),
		Data:        s.Objects(),
	})
}

func (h *DatasetHandler) writeCSV(w http.ResponseWriter, r *http.Request, res *services.SliceResult) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set(HeaderStale, strconv.FormatBool(res.Stale))
	w.Header().Set(HeaderSourceDate, formatDate(res.SourceDate))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(res.Slice.Headers())
	cw.WriteAll(res.Slice.Strings())
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to write CSV response", slog.String("error", err.Error()))
	}
}

func (h *DatasetHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.WarnContext(r.Context(), msg,
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.GetReqID(r.Context())))
	h.errorHandler.HandleError(w, r, err)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func nonNil(keys []string) []string {
	if keys == nil {
		return []string{}
	}
	return keys
}
