// Package api exposes the engine over HTTP for the administration and
// query layers. All money fields travel as decimal strings.
package api

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/internal/governance"
	"github.com/oberonmarkets/comex-ledger/internal/registry"
	"github.com/oberonmarkets/comex-ledger/internal/settlement"
	"github.com/oberonmarkets/comex-ledger/pkg/errors"
)

// ErrorResponse is the standard error body: the taxonomy kind plus its
// canonical message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Server wires the engine into a gin router.
type Server struct {
	logger   *zap.Logger
	engine   *settlement.Engine
	gov      *governance.State
	registry *registry.Registry
	router   *gin.Engine
}

// NewServer builds the router. promReg backs the /metrics endpoint.
func NewServer(logger *zap.Logger, engine *settlement.Engine, gov *governance.State, reg *registry.Registry, promReg *prometheus.Registry) *Server {
	s := &Server{
		logger:   logger,
		engine:   engine,
		gov:      gov,
		registry: reg,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger, true))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"sealed":    gov.IsSealed(),
			"read_only": gov.IsReadOnly(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/accounts/:id", s.getAccount)
		v1.GET("/batches/:id", s.getBatch)
		v1.POST("/batches", s.mintBatch)
		v1.PUT("/batches/:id/fee", s.setBatchFee)
		v1.POST("/fees/schedules", s.setFeeSchedule)
		v1.POST("/transfers", s.settleTransfer)
		v1.POST("/governance/seal", s.seal)
		v1.PUT("/governance/readonly", s.setReadOnly)
	}

	s.router = r
	return s
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("http server listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// writeError maps a taxonomy kind to an HTTP status and writes the
// standard error body.
func writeError(c *gin.Context, err error) {
	kind := errors.KindOf(err)
	status := http.StatusBadRequest
	switch kind {
	case errors.KindRestricted:
		status = http.StatusForbidden
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindReadOnly:
		status = http.StatusConflict
	case errors.KindInsufficientBalance, errors.KindInsufficientTokens,
		errors.KindInsufficientCurrencyA, errors.KindInsufficientCurrencyB,
		errors.KindInsufficientTokensA, errors.KindInsufficientTokensB:
		status = http.StatusUnprocessableEntity
	case errors.KindUnknown:
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorResponse{Error: string(kind), Message: errors.Canonical(kind)})
}
