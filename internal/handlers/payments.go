package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"telehealth-portal/internal/backend"
	"telehealth-portal/internal/payment"
	"telehealth-portal/internal/utils"
)

// PaymentHandler reports booking payment status.
type PaymentHandler struct {
	Poller *payment.Poller
}

func NewPaymentHandler(p *payment.Poller) *PaymentHandler {
	return &PaymentHandler{Poller: p}
}

// PaymentStatusResult says whether the status is final.
type PaymentStatusResult struct {
	Payment backend.Payment `json:"payment"`
	Final   bool            `json:"final"`
}

// GetPaymentStatus reads the status once, or with wait=true polls until it is final
// or the poll policy runs out.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	if _, ok := viewerOrAbort(c); !ok {
		return
	}
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		pay backend.Payment
		err error
	)
	if wait {
		pay, err = h.Poller.Await(ctx, id)
	} else {
		pay, err = h.Poller.Check(ctx, id)
	}
	if errors.Is(err, payment.ErrPollExhausted) {
		utils.Success(c, "Payment is still being processed", PaymentStatusResult{Payment: pay})
		return
	}
	if err != nil {
		respondBackendError(c, err, "Failed to retrieve payment status")
		return
	}
	utils.Success(c, "Payment status retrieved", PaymentStatusResult{Payment: pay, Final: pay.Status.Terminal()})
}
