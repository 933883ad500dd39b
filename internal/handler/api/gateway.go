package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/finbridge/finbridge/internal/domain/models"
	"github.com/finbridge/finbridge/internal/domain/repository"
	"github.com/finbridge/finbridge/internal/usecase"
	"github.com/finbridge/finbridge/pkg/cache"
	xhttp "github.com/finbridge/finbridge/pkg/http"
	xlogger "github.com/finbridge/finbridge/pkg/logger"
	"github.com/finbridge/finbridge/pkg/util"
)

// GatewayHandler exposes the provider gateway over HTTP. It maps the
// three provider error kinds onto status codes and never leaks
// upstream-native failures.
type GatewayHandler struct {
	logger    *xlogger.Logger
	composite *usecase.CompositeProvider
	registry  *usecase.ProviderRegistry
	cache     cache.Service
	cacheTTL  time.Duration
}

// NewGatewayHandler creates the handler. Cache is optional.
func NewGatewayHandler(
	logger *xlogger.Logger,
	composite *usecase.CompositeProvider,
	registry *usecase.ProviderRegistry,
	c cache.Service,
	cacheTTL time.Duration,
) *GatewayHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &GatewayHandler{
		logger:    logger,
		composite: composite,
		registry:  registry,
		cache:     c,
		cacheTTL:  cacheTTL,
	}
}

// RegisterRoutes registers the gateway API.
func (h *GatewayHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/companies/search", h.Search)
	g.GET("/companies/:id", h.Metadata)
	g.GET("/companies/:id/financials", h.Financials)
	g.GET("/companies/:id/metrics/latest", h.LatestMetrics)
	g.GET("/companies/:id/peers", h.Peers)
	g.GET("/quotes/:ticker", h.Quote)
	g.GET("/providers/health", h.ProvidersHealth)
	e.GET("/healthz", h.Healthz)
}

// Search handles GET /api/v1/companies/search?q=.
func (h *GatewayHandler) Search(c echo.Context) error {
	req := &models.SearchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	key := "search:" + strings.ToLower(req.Query)
	var cached []models.CompanyMetadata
	if h.cacheGet(c, key, &cached) {
		return xhttp.SuccessResponse(c, cached)
	}

	results, err := h.composite.SearchCompanies(c.Request().Context(), req.Query)
	if err != nil {
		return h.providerError(c, "search", err)
	}
	h.cacheSet(c, key, results)
	return xhttp.SuccessResponse(c, results)
}

// Metadata handles GET /api/v1/companies/:id.
func (h *GatewayHandler) Metadata(c echo.Context) error {
	id := c.Param("id")

	key := "metadata:" + strings.ToUpper(id)
	var cached models.CompanyMetadata
	if h.cacheGet(c, key, &cached) {
		return xhttp.SuccessResponse(c, &cached)
	}

	md, err := h.composite.GetCompanyMetadata(c.Request().Context(), id)
	if err != nil {
		return h.providerError(c, "metadata", err)
	}
	h.cacheSet(c, key, md)
	return xhttp.SuccessResponse(c, md)
}

// Financials handles GET /api/v1/companies/:id/financials.
func (h *GatewayHandler) Financials(c echo.Context) error {
	id := c.Param("id")
	req := &models.FinancialsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	opts, verr := fetchOptions(req)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	data, err := h.composite.GetFinancialData(c.Request().Context(), id, opts)
	if err != nil {
		return h.providerError(c, "financials", err)
	}
	return xhttp.SuccessResponse(c, data)
}

// LatestMetrics handles GET /api/v1/companies/:id/metrics/latest.
func (h *GatewayHandler) LatestMetrics(c echo.Context) error {
	id := c.Param("id")
	req := &models.LatestMetricsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	concepts := splitCSV(req.Concepts)
	data, err := h.composite.GetLatestMetrics(c.Request().Context(), id, concepts)
	if err != nil {
		return h.providerError(c, "latest", err)
	}
	return xhttp.SuccessResponse(c, data)
}

// Peers handles GET /api/v1/companies/:id/peers.
func (h *GatewayHandler) Peers(c echo.Context) error {
	id := c.Param("id")
	req := &models.PeersRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	peers, err := h.composite.GetPeers(c.Request().Context(), id, req.Limit)
	if err != nil {
		return h.providerError(c, "peers", err)
	}
	return xhttp.SuccessResponse(c, peers)
}

// Quote handles GET /api/v1/quotes/:ticker.
func (h *GatewayHandler) Quote(c echo.Context) error {
	ticker := util.NormalizeTicker(c.Param("ticker"))

	q, err := h.composite.GetQuote(c.Request().Context(), ticker)
	if err != nil {
		return h.providerError(c, "quote", err)
	}
	return xhttp.SuccessResponse(c, q)
}

// ProvidersHealth handles GET /api/v1/providers/health.
func (h *GatewayHandler) ProvidersHealth(c echo.Context) error {
	results := h.registry.HealthCheckAll(c.Request().Context())
	return xhttp.SuccessResponse(c, results)
}

// Healthz reports gateway liveness: healthy while at least one
// provider is reachable.
func (h *GatewayHandler) Healthz(c echo.Context) error {
	if h.composite.HealthCheck(c.Request().Context()) {
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"status":    "ok",
			"providers": h.composite.Providers(),
		})
	}
	return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]interface{}{
		"status":    "degraded",
		"providers": h.composite.Providers(),
	})
}

func (h *GatewayHandler) providerError(c echo.Context, op string, err error) error {
	var rl *models.RateLimitError
	if errors.As(err, &rl) {
		if rl.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.RetryAfter.Seconds())))
		}
		return xhttp.DataResponse(c, http.StatusTooManyRequests, errBody(err))
	}
	if models.IsNotFound(err) {
		return xhttp.DataResponse(c, http.StatusNotFound, errBody(err))
	}

	h.logger.Error("gateway request failed",
		xlogger.String("op", op),
		xlogger.Error(err))
	return xhttp.DataResponse(c, models.StatusOf(err), errBody(err))
}

func errBody(err error) interface{} {
	var rl *models.RateLimitError
	if errors.As(err, &rl) {
		return rl
	}
	var nf *models.NotFoundError
	if errors.As(err, &nf) {
		return &nf.ProviderError
	}
	var pe *models.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return map[string]string{"message": err.Error()}
}

func (h *GatewayHandler) cacheGet(c echo.Context, key string, dest interface{}) bool {
	if h.cache == nil {
		return false
	}
	err := h.cache.Get(c.Request().Context(), key, dest)
	return err == nil
}

func (h *GatewayHandler) cacheSet(c echo.Context, key string, value interface{}) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(c.Request().Context(), key, value, h.cacheTTL); err != nil {
		h.logger.Debug("cache set failed", xlogger.String("key", key), xlogger.Error(err))
	}
}

func fetchOptions(req *models.FinancialsRequest) (opts repository.FetchOptions, verr interface{}) {
	opts.Concepts = splitCSV(req.Concepts)
	opts.Form = req.Form
	opts.Limit = req.Limit
	if req.From != "" {
		t, ok := util.ParseDate(req.From)
		if !ok {
			return opts, []xhttp.ValidationError{{Code: "ERR_DATE", Field: "from", Message: "invalid date"}}
		}
		opts.From = t
	}
	if req.To != "" {
		t, ok := util.ParseDate(req.To)
		if !ok {
			return opts, []xhttp.ValidationError{{Code: "ERR_DATE", Field: "to", Message: "invalid date"}}
		}
		opts.To = t
	}
	return opts, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
