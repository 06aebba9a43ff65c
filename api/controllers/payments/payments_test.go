package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/api/middleware"
	internalorders "github.com/angelmondragon/coffeeshop-backend/internal/orders"
	internalpayments "github.com/angelmondragon/coffeeshop-backend/internal/payments"
	"github.com/angelmondragon/coffeeshop-backend/internal/payments/vnpay"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

type stubPaymentsService struct {
	initiate func(ctx context.Context, caller internalorders.Caller, input internalpayments.InitiateInput) (*internalpayments.InitiateResult, error)
	ipn      func(ctx context.Context, params vnpay.Params) internalpayments.Ack
	status   func(ctx context.Context, caller internalorders.Caller, rawOrderID string) (*internalpayments.StatusView, error)
}

func (s *stubPaymentsService) Initiate(ctx context.Context, caller internalorders.Caller, input internalpayments.InitiateInput) (*internalpayments.InitiateResult, error) {
	return s.initiate(ctx, caller, input)
}

func (s *stubPaymentsService) HandleIPN(ctx context.Context, params vnpay.Params) internalpayments.Ack {
	return s.ipn(ctx, params)
}

func (s *stubPaymentsService) Status(ctx context.Context, caller internalorders.Caller, rawOrderID string) (*internalpayments.StatusView, error) {
	return s.status(ctx, caller, rawOrderID)
}

func TestInitiateForwardsClientIP(t *testing.T) {
	var got internalpayments.InitiateInput
	svc := &stubPaymentsService{
		initiate: func(ctx context.Context, caller internalorders.Caller, input internalpayments.InitiateInput) (*internalpayments.InitiateResult, error) {
			got = input
			return &internalpayments.InitiateResult{PaymentURL: "https://sandbox.example/pay?x=1"}, nil
		},
	}

	body := `{"order_id":5,"amount":"96648","order_info":"  Thanh toan don hang 5  "}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/vnpay", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req = req.WithContext(middleware.WithCaller(req.Context(), 7, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	Initiate(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if got.IPAddr != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %q", got.IPAddr)
	}
	if !got.Amount.Equal(decimal.NewFromInt(96648)) || got.OrderID != 5 {
		t.Fatalf("unexpected input %+v", got)
	}
	if got.OrderInfo != "Thanh toan don hang 5" {
		t.Fatalf("expected trimmed order info, got %q", got.OrderInfo)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "198.51.100.4:50123"
	if ip := clientIP(req); ip != "198.51.100.4" {
		t.Fatalf("unexpected ip %q", ip)
	}
}

func TestIPNWritesRawAck(t *testing.T) {
	var gotRef string
	svc := &stubPaymentsService{
		ipn: func(ctx context.Context, params vnpay.Params) internalpayments.Ack {
			gotRef = params.Get(vnpay.ParamTxnRef)
			return internalpayments.Ack{RspCode: internalpayments.RspInvalidSignature, Message: "Invalid Checksum"}
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/vnpay/ipn?vnp_TxnRef=42&vnp_SecureHash=bad", nil)
	resp := httptest.NewRecorder()
	IPN(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("gateway acks are always 200, got %d", resp.Code)
	}
	if gotRef != "42" {
		t.Fatalf("expected txn ref forwarded, got %q", gotRef)
	}
	var ack internalpayments.Ack
	if err := json.Unmarshal(resp.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.RspCode != "97" || ack.Message != "Invalid Checksum" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestStatusShapes(t *testing.T) {
	svc := &stubPaymentsService{
		status: func(ctx context.Context, caller internalorders.Caller, rawOrderID string) (*internalpayments.StatusView, error) {
			switch rawOrderID {
			case "5":
				return &internalpayments.StatusView{OrderID: 5, Status: enums.OrderStatusPaid}, nil
			case "x":
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid Order ID format.")
			default:
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found.")
			}
		},
	}

	tests := []struct {
		id      string
		code    int
		success bool
		message string
	}{
		{"5", http.StatusOK, true, ""},
		{"x", http.StatusBadRequest, false, "Invalid Order ID format."},
		{"99", http.StatusNotFound, false, "Order not found."},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/status/"+tt.id, nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", tt.id)
		ctx := context.WithValue(middleware.WithCaller(req.Context(), 7, enums.UserRoleCustomer), chi.RouteCtxKey, rc)
		resp := httptest.NewRecorder()
		Status(svc, nil).ServeHTTP(resp, req.WithContext(ctx))

		if resp.Code != tt.code {
			t.Fatalf("id %s: expected %d got %d", tt.id, tt.code, resp.Code)
		}
		var body statusResponse
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Success != tt.success || body.Message != tt.message {
			t.Fatalf("id %s: unexpected body %+v", tt.id, body)
		}
		if tt.success && (body.OrderID != 5 || body.Status != "PAID") {
			t.Fatalf("unexpected status body %+v", body)
		}
	}
}
