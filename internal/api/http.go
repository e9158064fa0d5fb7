package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/orderstack/order-agent/internal/models"
	"github.com/orderstack/order-agent/internal/utils"
)

// QueryService is the domain surface served over HTTP.
type QueryService interface {
	Query(ctx context.Context, req models.QueryRequest) (models.Response, error)
	Stats(ctx context.Context) (models.ModelStats, error)
	History(ctx context.Context, req models.ListRunsRequest) (models.ListRunsResponse, error)
	Health(ctx context.Context) models.HealthStatus
	RawOrder(ctx context.Context, orderID string) (models.RawOrder, error)
}

// ErrorBody is the JSON error envelope returned by the HTTP API.
type ErrorBody struct {
	Error   string        `json:"error"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail names one invalid request field.
type ErrorDetail struct {
	Path string `json:"path"`
	Info string `json:"info"`
}

type httpHandler struct {
	service QueryService
	logger  *slog.Logger
}

// NewRouter builds the gin engine serving the order agent HTTP API.
func NewRouter(service QueryService, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &httpHandler{service: service, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))
	r.Use(cors())

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", h.health)
		apiGroup.POST("/query", h.query)
		apiGroup.GET("/stats", h.stats)
		apiGroup.GET("/runs", h.runs)
		apiGroup.GET("/orders/:id", h.rawOrder)
	}
	return r
}

func (h *httpHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Health(c.Request.Context()))
}

func (h *httpHandler) query(c *gin.Context) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.service.Query(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "query", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *httpHandler) stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) runs(c *gin.Context) {
	var req models.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, err)
		return
	}
	resp, err := h.service.History(c.Request.Context(), req)
	if err != nil {
		h.fail(c, "runs", err)
		return
	}
	if resp.Runs == nil {
		resp.Runs = []models.RunRecord{}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *httpHandler) rawOrder(c *gin.Context) {
	order, err := h.service.RawOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "raw_order", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *httpHandler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, utils.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
	case errors.Is(err, utils.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: err.Error()})
	case errors.Is(err, utils.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorBody{Error: err.Error()})
	default:
		h.logger.Error("http request failed", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]ErrorDetail, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, ErrorDetail{Path: fe.Field(), Info: validationMessage(fe)})
		}
		c.JSON(http.StatusBadRequest, ErrorBody{Error: "validation failed", Details: details})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorBody{Error: err.Error()})
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must be at least " + fe.Param()
	case "lte":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// HTTPServer serves the HTTP API with the same lifecycle shape as Server.
type HTTPServer struct {
	srv      *http.Server
	listener net.Listener
}

// NewHTTPServer binds addr and prepares handler for serving.
func NewHTTPServer(addr string, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &HTTPServer{
		srv: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	if s == nil || s.srv == nil {
		return fmt.Errorf("http server not initialised")
	}
	if err := s.srv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
