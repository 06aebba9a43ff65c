package vnpay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

const (
	timestampLayout  = "20060102150405"
	defaultExpiry    = 15 * time.Minute
	orderInfoPrefix  = "Thanh toan don hang:"
	amountMultiplier = 100
)

var (
	ErrGatewayRequest = errors.New("vnpay request could not be built")

	errTmnCodeRequired = errors.New("vnpay tmn code is required")
	errSecretRequired  = errors.New("vnpay hash secret is required")
	errPayURLRequired  = errors.New("vnpay pay url is required")
)

// PaymentRequest is what the shop knows about a payment before redirecting the buyer.
type PaymentRequest struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	BankCode  string
	IPAddr    string
}

// Client signs outbound payment requests and verifies inbound callbacks.
type Client struct {
	cfg      config.VNPayConfig
	loc      *time.Location
	lifetime time.Duration
}

func NewClient(cfg config.VNPayConfig) (*Client, error) {
	cfg.TmnCode = strings.TrimSpace(cfg.TmnCode)
	cfg.HashSecret = strings.TrimSpace(cfg.HashSecret)
	switch {
	case cfg.TmnCode == "":
		return nil, errTmnCodeRequired
	case cfg.HashSecret == "":
		return nil, errSecretRequired
	case strings.TrimSpace(cfg.PayURL) == "":
		return nil, errPayURLRequired
	}
	lifetime := cfg.ExpireAfter
	if lifetime <= 0 {
		lifetime = defaultExpiry
	}
	return &Client{cfg: cfg, loc: cfg.Location(), lifetime: lifetime}, nil
}

// BuildPaymentURL returns the gateway redirect for req, stamped with now.
func (c *Client) BuildPaymentURL(req PaymentRequest, now time.Time) (string, error) {
	params, err := c.requestParams(req, now)
	if err != nil {
		return "", err
	}
	signature := Sign(c.cfg.HashSecret, params.Canonicalize())
	return c.cfg.PayURL + "?" + params.Query() + "&" + ParamSecureHash + "=" + signature, nil
}

func (c *Client) requestParams(req PaymentRequest, now time.Time) (Params, error) {
	ref := strings.TrimSpace(req.TxnRef)
	if ref == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ErrGatewayRequest, "transaction reference is required")
	}
	minor := req.Amount.Mul(decimal.NewFromInt(amountMultiplier))
	if !minor.IsPositive() || !minor.Equal(minor.Truncate(0)) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ErrGatewayRequest,
			fmt.Sprintf("amount %s cannot be expressed in gateway units", req.Amount))
	}

	info := strings.TrimSpace(req.OrderInfo)
	if info == "" {
		info = orderInfoPrefix + ref
	}
	local := now.In(c.loc)

	params := Params{
		"vnp_Version":    c.cfg.Version,
		"vnp_Command":    c.cfg.Command,
		"vnp_TmnCode":    c.cfg.TmnCode,
		ParamAmount:      minor.StringFixed(0),
		"vnp_CurrCode":   c.cfg.CurrCode,
		ParamTxnRef:      ref,
		"vnp_OrderInfo":  info,
		"vnp_OrderType":  c.cfg.OrderType,
		"vnp_Locale":     c.cfg.Locale,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     req.IPAddr,
		"vnp_CreateDate": local.Format(timestampLayout),
		"vnp_ExpireDate": local.Add(c.lifetime).Format(timestampLayout),
	}
	if bank := strings.TrimSpace(req.BankCode); bank != "" {
		params[ParamBankCode] = bank
	}
	return params, nil
}

// Verify checks the signature of callback params with the merchant secret.
func (c *Client) Verify(params Params) bool {
	return Verify(c.cfg.HashSecret, params)
}

// Sign stamps params with a vnp_SecureHash. Used to simulate gateway callbacks.
func (c *Client) Sign(params Params) Params {
	signed := params.without(ParamSecureHash, ParamSecureHashType)
	signed[ParamSecureHash] = Sign(c.cfg.HashSecret, signed.Canonicalize())
	return signed
}

// ParseAmount converts a vnp_Amount value back to currency units.
func ParseAmount(raw string) (decimal.Decimal, error) {
	minor, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeContract, err, "vnp_Amount is not numeric")
	}
	return minor.Div(decimal.NewFromInt(amountMultiplier)), nil
}
