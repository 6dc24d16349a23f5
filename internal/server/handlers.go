package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"diggin-checkout/internal/api"
	"diggin-checkout/internal/domain"
	"diggin-checkout/internal/repo"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errBadBody = errors.New("invalid request body")

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, api.ErrorResponse{Success: false, Error: "Invalid request body"})
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var req api.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.Join(errBadBody, err))
		return
	}

	co, err := s.Checkout.CreateCheckout(c.Request.Context(), principalFrom(c), req.Domain())
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.CreateOrderResponse{
		Success:     true,
		OrderID:     co.GatewayOrderID,
		Amount:      co.Amount,
		Currency:    co.Currency,
		ReferenceID: co.ReferenceID.String(),
		Key:         co.PublicKey,
		Items:       co.Items,
	})
}

func (s *Server) handleVerifyPayment(c *gin.Context) {
	var req api.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.Join(errBadBody, err))
		return
	}

	res, err := s.Verification.VerifyAndSettle(c.Request.Context(), principalFrom(c), req.Domain())
	if err != nil {
		_ = c.Error(err)
		abortVerification(c, err)
		return
	}

	c.JSON(http.StatusOK, api.VerifyPaymentResponse{
		Success:     true,
		Message:     "Payment verified successfully",
		ReferenceID: res.ReferenceID.String(),
	})
}

func (s *Server) handleSendNotification(c *gin.Context) {
	var req api.SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.Join(errBadBody, err))
		return
	}

	if err := s.Notifier.Dispatch(c.Request.Context(), req); err != nil {
		if errors.Is(err, domain.ErrInvalidNotification) {
			abortWithError(c, err)
			return
		}
		// delivery is best effort
		s.Log.Error("notification dispatch failed", zap.String("type", string(req.Type)), zap.Error(err))
	}
	c.JSON(http.StatusAccepted, api.SendNotificationResponse{Success: true, Queued: true})
}

func (s *Server) handleListMine(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	intents, err := s.Admin.ListMine(c.Request.Context(), principalFrom(c), limit)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "intents": views(intents)})
}

func (s *Server) handleListAll(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := repo.IntentFilter{
		Type:   domain.IntentType(c.Query("type")),
		Limit:  limit,
		Offset: offset,
	}

	intents, err := s.Admin.ListAll(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "intents": views(intents)})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, domain.ErrNotFound)
		return
	}
	var req api.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, errors.Join(errBadBody, err))
		return
	}

	intent, err := s.Admin.UpdateStatus(c.Request.Context(), principalFrom(c), id, req.Status)
	if err != nil {
		_ = c.Error(err)
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "intent": view(*intent)})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := s.Health.Health()
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func views(intents []domain.Intent) []api.IntentView {
	out := make([]api.IntentView, 0, len(intents))
	for _, i := range intents {
		out = append(out, view(i))
	}
	return out
}

func view(i domain.Intent) api.IntentView {
	v := api.IntentView{
		ID:               i.ID.String(),
		Type:             i.Type,
		Items:            i.Items,
		Booking:          i.Booking,
		TotalAmount:      i.TotalAmount,
		Status:           i.Status,
		PaymentStatus:    i.PaymentStatus,
		PaymentMethod:    i.PaymentMethod,
		GatewayPaymentID: i.GatewayPaymentID,
		AmountPaid:       i.AmountPaid,
		CreatedAt:        i.CreatedAt.Format(time.RFC3339),
	}
	if i.PaidAt != nil {
		v.PaidAt = i.PaidAt.Format(time.RFC3339)
	}
	return v
}
