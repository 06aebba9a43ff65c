package payments

import (
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coffeeshop-backend/api/middleware"
	"github.com/angelmondragon/coffeeshop-backend/api/responses"
	"github.com/angelmondragon/coffeeshop-backend/api/validators"
	internalorders "github.com/angelmondragon/coffeeshop-backend/internal/orders"
	internalpayments "github.com/angelmondragon/coffeeshop-backend/internal/payments"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments/vnpay"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/logger"
)

const maxOrderInfoLen = 255

type statusResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// Initiate returns the signed gateway URL for a pending order.
func Initiate(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var input internalpayments.InitiateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.OrderInfo = validators.SanitizeString(input.OrderInfo, maxOrderInfoLen)
		input.BankCode = validators.SanitizeString(input.BankCode, 0)
		input.IPAddr = clientIP(r)

		result, err := svc.Initiate(r.Context(), callerFrom(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// IPN answers the gateway's server-to-server notification. The gateway reads
// only the body, so the status is always 200.
func IPN(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			if logg != nil {
				logg.Error(r.Context(), "payment.ipn.unavailable", pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			}
			responses.WriteJSON(w, http.StatusOK, internalpayments.Ack{RspCode: internalpayments.RspUnknownError, Message: "Unknown error"})
			return
		}
		ack := svc.HandleIPN(r.Context(), vnpay.FromValues(r.URL.Query()))
		responses.WriteJSON(w, http.StatusOK, ack)
	}
}

// Status reports the order status for the storefront's return page.
func Status(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		view, err := svc.Status(r.Context(), callerFrom(r), chi.URLParam(r, "orderId"))
		if err != nil {
			typed := pkgerrors.As(err)
			if typed == nil {
				typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment status")
			}
			meta := pkgerrors.MetadataFor(typed.Code())
			msg := meta.PublicMessage
			if meta.HTTPStatus < http.StatusInternalServerError && typed.Message() != "" {
				msg = typed.Message()
			}
			if logg != nil {
				logg.WarnErr(r.Context(), "payment.status.failed", err)
			}
			responses.WriteJSON(w, meta.HTTPStatus, statusResponse{Success: false, Message: msg})
			return
		}
		responses.WriteJSON(w, http.StatusOK, statusResponse{
			Success: true,
			OrderID: view.OrderID,
			Status:  view.Status.String(),
		})
	}
}

func callerFrom(r *http.Request) internalorders.Caller {
	return internalorders.Caller{
		UserID: middleware.UserIDFromContext(r.Context()),
		Role:   middleware.RoleFromContext(r.Context()),
	}
}

// clientIP prefers the first X-Forwarded-For hop and falls back to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
