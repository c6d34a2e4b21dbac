package user

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ncecere/tenant_console/internal/authz"
	"github.com/ncecere/tenant_console/internal/httpserver/httputil"
	"github.com/ncecere/tenant_console/internal/requestctx"
	"github.com/ncecere/tenant_console/internal/services/usage"
	"github.com/ncecere/tenant_console/internal/timeutil"
)

type usageHandler struct {
	meter  UsageMeter
	logger *zap.Logger
}

type usageEventRequest struct {
	Metric string `json:"metric"`
	Amount int64  `json:"amount"`
}

type usageEventResponse struct {
	Metric     string    `json:"metric"`
	Amount     int64     `json:"amount"`
	RecordedAt time.Time `json:"recorded_at"`
}

func (h *usageHandler) summary(c *fiber.Ctx) error {
	session, ok := requestctx.SessionFrom(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, authz.MessageUnauthorized)
	}
	if h.meter == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	summary, err := h.meter.Summarize(userContext(c), session.UserID, strings.TrimSpace(c.Query("period")))
	if err != nil {
		if errors.Is(err, timeutil.ErrInvalidPeriod) {
			return httputil.WriteError(c, fiber.StatusBadRequest, "period must be YYYY-MM-01")
		}
		h.logger.Error("usage summary failed", zap.String("user_id", session.UserID.String()), zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}
	return c.JSON(summary)
}

func (h *usageHandler) record(c *fiber.Ctx) error {
	session, ok := requestctx.SessionFrom(c.UserContext())
	if !ok {
		return httputil.WriteError(c, fiber.StatusUnauthorized, authz.MessageUnauthorized)
	}
	if h.meter == nil {
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}

	var req usageEventRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Metric = strings.TrimSpace(req.Metric)

	now := time.Now().UTC()
	if err := h.meter.Record(userContext(c), session.UserID, req.Metric, req.Amount, now); err != nil {
		if errors.Is(err, usage.ErrInvalidMetric) || errors.Is(err, usage.ErrInvalidAmount) || errors.Is(err, usage.ErrOverflow) {
			return httputil.WriteError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("usage record failed", zap.String("user_id", session.UserID.String()), zap.Error(err))
		return httputil.WriteError(c, fiber.StatusInternalServerError, authz.MessageServerError)
	}
	return c.Status(fiber.StatusCreated).JSON(usageEventResponse{
		Metric:     req.Metric,
		Amount:     req.Amount,
		RecordedAt: now,
	})
}
