package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/common"
	"github.com/noah-isme/backend-kasir/internal/discount"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

// Handler wires the calculation service to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Logger   zerolog.Logger
	Now      func() time.Time
}

type quoteRequest struct {
	Input
	Context
}

// Quote handles POST /v1/quote: it decodes the cart, runs the calculation
// and renders the full breakdown. Unavailable-type conditions (cannot
// ship, no tax rate) ride on a 200 response as flags.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "quote service not configured", nil)
		return
	}
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, common.CodeBadRequest, "invalid request body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req.Input); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, common.CodeValidation, "invalid cart payload", err.Error())
			return
		}
	}
	if req.Context.AsOf.IsZero() {
		req.Context.AsOf = h.now()
	}

	start := time.Now()
	res, err := h.Svc.Calculate(r.Context(), req.Input, req.Context)
	obs.QuoteDuration.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	obs.QuoteTotal.WithLabelValues("ok").Inc()
	for _, rej := range res.DiscountRejections {
		obs.DiscountRejectedTotal.WithLabelValues(rej.Reason).Inc()
	}
	if res.CannotShip {
		obs.CannotShipTotal.Inc()
	}
	common.Data(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if appErr, ok := common.AsAppError(err); ok {
		obs.QuoteTotal.WithLabelValues("error").Inc()
		common.RenderError(w, appErr)
		return
	}
	var appErr *common.AppError
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, discount.ErrDuplicateCodes):
		obs.QuoteTotal.WithLabelValues("validation").Inc()
		appErr = common.NewAppError(common.CodeValidation, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, ErrUpstream):
		obs.QuoteTotal.WithLabelValues("upstream").Inc()
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("upstream lookup failed")
		appErr = common.NewAppError(common.CodeUpstream, http.StatusBadGateway, "a reference data lookup failed", err)
	default:
		obs.QuoteTotal.WithLabelValues("error").Inc()
		h.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("quote failed")
		appErr = common.NewAppError(common.CodeInternal, http.StatusInternalServerError, "unable to calculate quote", err)
	}
	common.RenderError(w, appErr)
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}
