package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oberonmarkets/comex-ledger/pkg/models"
)

func (s *Server) getAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: "account id must be a uuid"})
		return
	}
	c.JSON(http.StatusOK, s.engine.GetLedgerEntry(id))
}

func (s *Server) getBatch(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: "batch id must be an unsigned integer"})
		return
	}
	view, err := s.engine.GetBatch(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type mintBatchRequest struct {
	TokenType  uint32                    `json:"token_type" binding:"required"`
	Quantity   decimal.Decimal           `json:"quantity" binding:"required"`
	Originator uuid.UUID                 `json:"originator" binding:"required"`
	Fee        models.OriginatorSchedule `json:"fee"`
	MirrorBps  decimal.Decimal           `json:"mirror_bps"`
	Tags       []string                  `json:"tags"`
}

func (s *Server) mintBatch(c *gin.Context) {
	var req mintBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	}
	id, err := s.engine.MintBatch(req.TokenType, req.Quantity, req.Originator, req.Fee, req.MirrorBps, req.Tags)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"batch_id": id})
}

type setBatchFeeRequest struct {
	Fee    models.OriginatorSchedule `json:"fee"`
	Caller uuid.UUID                 `json:"caller" binding:"required"`
}

func (s *Server) setBatchFee(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: "batch id must be an unsigned integer"})
		return
	}
	var req setBatchFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	}
	if err := s.engine.SetBatchOriginatorFee(id, req.Fee, req.Caller); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setFeeScheduleRequest struct {
	Kind     models.FeeKind     `json:"kind" binding:"required"`
	TypeID   uint32             `json:"type_id" binding:"required"`
	Scope    *uuid.UUID         `json:"scope"` // null for the global schedule
	Schedule models.FeeSchedule `json:"schedule"`
	Caller   uuid.UUID          `json:"caller" binding:"required"`
}

func (s *Server) setFeeSchedule(c *gin.Context) {
	var req setFeeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	}
	scope := uuid.Nil
	if req.Scope != nil {
		scope = *req.Scope
	}
	if err := s.engine.SetFeeSchedule(req.Kind, req.TypeID, scope, req.Schedule, req.Caller); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type settleRequest struct {
	Request   models.TransferRequest `json:"request"`
	ApplyFees bool                   `json:"apply_fees"`
}

func (s *Server) settleTransfer(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	}
	res, err := s.engine.SettleTransfer(&req.Request, req.ApplyFees)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) seal(c *gin.Context) {
	s.gov.Seal()
	c.Status(http.StatusNoContent)
}

type readOnlyRequest struct {
	ReadOnly bool `json:"read_only"`
}

func (s *Server) setReadOnly(c *gin.Context) {
	var req readOnlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: err.Error()})
		return
	}
	if err := s.gov.SetReadOnly(req.ReadOnly); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
