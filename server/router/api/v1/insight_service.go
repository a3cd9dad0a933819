// Package v1 implements the caller-facing insight API.
package v1

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/promptlens/promptlens/internal/errors"
	"github.com/promptlens/promptlens/internal/observability"
	"github.com/promptlens/promptlens/plugin/ai"
	"github.com/promptlens/promptlens/plugin/ai/insight"
	"github.com/promptlens/promptlens/store"
)

// APIV1Service holds the handlers for /api/v1.
type APIV1Service struct {
	store    *store.Store
	engine   *insight.Engine
	llm      ai.LLMService
	embedder ai.EmbeddingService
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(s *store.Store, engine *insight.Engine, llm ai.LLMService, embedder ai.EmbeddingService) *APIV1Service {
	return &APIV1Service{
		store:    s,
		engine:   engine,
		llm:      llm,
		embedder: embedder,
	}
}

// RegisterRoutes registers all v1 routes on the group.
func (s *APIV1Service) RegisterRoutes(g *echo.Group) {
	g.POST("/insights/query", s.Query)
	g.POST("/insights/drilldown", s.DrillDown)
	g.POST("/records", s.CreateRecord)
}

// TimeRange bounds a query by creation time. Both ends optional.
type TimeRange struct {
	Since *time.Time `json:"since,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// QueryRequest is the wire shape of an insight query.
type QueryRequest struct {
	Question  string     `json:"question"`
	TimeRange *TimeRange `json:"timeRange,omitempty"`
	Owner     *string    `json:"owner,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}

// DrillDownRequest is the wire shape of a drill-down request.
type DrillDownRequest struct {
	QueryRequest
	SegmentKey string `json:"segmentKey"`
}

// QueryResponse is the wire shape of an insight query result.
type QueryResponse struct {
	ChartKind    string               `json:"chartKind"`
	Data         any                  `json:"data"`
	SegmentIndex insight.SegmentIndex `json:"segmentIndex"`
}

// Query handles POST /api/v1/insights/query.
func (s *APIV1Service) Query(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.Question == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	reqCtx := observability.NewRequestContext(slog.Default(), ownerOrEmpty(req.Owner))
	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)

	result, err := s.engine.Query(ctx, engineRequest(&req))
	if err != nil {
		reqCtx.Error("insight query failed", err,
			slog.String(observability.LogFieldErrorCode, string(errors.GetCodeFromError(err, errors.ErrCodeStoreFailure))))
		return errorResponse(c, err)
	}

	reqCtx.Info("insight query served",
		slog.String(observability.LogFieldPass, string(result.Pass)),
		slog.Int64(observability.LogFieldDuration, reqCtx.DurationMs()))
	return c.JSON(http.StatusOK, queryResponse(result))
}

// DrillDown handles POST /api/v1/insights/drilldown.
func (s *APIV1Service) DrillDown(c echo.Context) error {
	var req DrillDownRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed request body"})
	}
	if req.Question == "" || req.SegmentKey == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "question and segmentKey are required"})
	}

	reqCtx := observability.NewRequestContext(slog.Default(), ownerOrEmpty(req.Owner))
	ctx := observability.WithRequestContext(c.Request().Context(), reqCtx)

	records, err := s.engine.DrillDown(ctx, &insight.DrillDownRequest{
		QueryRequest: *engineRequest(&req.QueryRequest),
		SegmentKey:   req.SegmentKey,
	})
	if err != nil {
		reqCtx.Error("drill-down failed", err)
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, records)
}

func engineRequest(req *QueryRequest) *insight.QueryRequest {
	engineReq := &insight.QueryRequest{
		Question: req.Question,
		OwnerID:  req.Owner,
		Limit:    req.Limit,
	}
	if req.TimeRange != nil {
		engineReq.Since = req.TimeRange.Since
		engineReq.Until = req.TimeRange.Until
	}
	return engineReq
}

func queryResponse(result *insight.QueryResult) *QueryResponse {
	resp := &QueryResponse{
		ChartKind:    string(result.Chart.Kind),
		SegmentIndex: result.SegmentIndex,
	}
	switch {
	case result.Chart.Line != nil:
		resp.Data = result.Chart.Line
	case result.Chart.Bar != nil:
		resp.Data = result.Chart.Bar
	default:
		resp.Data = result.Chart.Pie
	}
	return resp
}

// errorResponse maps pipeline error codes onto HTTP statuses.
func errorResponse(c echo.Context, err error) error {
	code := errors.GetCodeFromError(err, errors.ErrCodeStoreFailure)
	status := http.StatusInternalServerError
	switch code {
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeProviderFailure:
		status = http.StatusBadGateway
	case errors.ErrCodeTimeout:
		status = http.StatusGatewayTimeout
	}
	return c.JSON(status, map[string]string{"error": string(code)})
}

func ownerOrEmpty(owner *string) string {
	if owner == nil {
		return ""
	}
	return *owner
}
