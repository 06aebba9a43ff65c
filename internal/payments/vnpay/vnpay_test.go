package vnpay

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coffeeshop-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
)

const testSecret = "SECRETKEY123"

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(config.VNPayConfig{
		TmnCode:     "TMN01",
		HashSecret:  testSecret,
		PayURL:      "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:   "https://shop.example/payment/return",
		Version:     "2.1.0",
		Command:     "pay",
		OrderType:   "other",
		Locale:      "vn",
		CurrCode:    "VND",
		ExpireAfter: 15 * time.Minute,
		Timezone:    "Asia/Ho_Chi_Minh",
	})
	require.NoError(t, err)
	return client
}

func TestCanonicalizeSortsSkipsEmptyAndFormEncodes(t *testing.T) {
	params := Params{
		"vnp_TxnRef":    "42",
		"vnp_Amount":    "9664800",
		"vnp_BankCode":  "",
		"vnp_OrderInfo": "Thanh toan don hang:42",
		"vnp_ReturnUrl": "https://shop.example/r?a=1&b=2",
		"vnp_Note":      "a*b~c",
	}
	got := params.Canonicalize()
	want := "vnp_Amount=9664800" +
		"&vnp_Note=a*b%7Ec" +
		"&vnp_OrderInfo=Thanh+toan+don+hang%3A42" +
		"&vnp_ReturnUrl=https%3A%2F%2Fshop.example%2Fr%3Fa%3D1%26b%3D2" +
		"&vnp_TxnRef=42"
	assert.Equal(t, want, got)
}

func TestSignIsLowercaseHex(t *testing.T) {
	sig := Sign(testSecret, "vnp_Amount=100")
	assert.Len(t, sig, 128)
	assert.Equal(t, strings.ToLower(sig), sig)
	assert.Equal(t, sig, Sign(testSecret, "vnp_Amount=100"))
	assert.NotEqual(t, sig, Sign("other", "vnp_Amount=100"))
}

func TestBuildPaymentURL(t *testing.T) {
	client := testClient(t)
	now := time.Date(2024, 6, 15, 2, 0, 0, 0, time.UTC)

	raw, err := client.BuildPaymentURL(PaymentRequest{
		TxnRef: "42",
		Amount: decimal.NewFromInt(96648),
		IPAddr: "203.0.113.9",
	}, now)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(raw, "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html?"))

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	params := FromValues(parsed.Query())

	assert.Equal(t, "9664800", params.Get(ParamAmount))
	assert.Equal(t, "Thanh toan don hang:42", params.Get("vnp_OrderInfo"))
	assert.Equal(t, "20240615090000", params.Get("vnp_CreateDate"))
	assert.Equal(t, "20240615091500", params.Get("vnp_ExpireDate"))
	assert.Equal(t, "TMN01", params.Get("vnp_TmnCode"))
	_, hasBank := params[ParamBankCode]
	assert.False(t, hasBank)

	assert.True(t, client.Verify(params))
}

func TestBuildPaymentURLRejectsFractionalMinorUnits(t *testing.T) {
	client := testClient(t)
	_, err := client.BuildPaymentURL(PaymentRequest{
		TxnRef: "42",
		Amount: decimal.RequireFromString("100.005"),
	}, time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayRequest))
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.CodeOf(err))
}

func TestVerifyRoundTripAndTamper(t *testing.T) {
	client := testClient(t)
	signed := client.Sign(Params{
		ParamTxnRef:        "42",
		ParamAmount:        "9664800",
		ParamResponseCode:  "00",
		ParamTransactionNo: "14012345",
		ParamBankCode:      "NCB",
		"vnp_OrderInfo":    "Thanh toan don hang:42",
	})
	require.True(t, client.Verify(signed))

	withType := signed.without()
	withType[ParamSecureHashType] = "HmacSHA512"
	assert.True(t, client.Verify(withType), "hash type must not take part in the signature")

	for key, value := range signed {
		if key == ParamSecureHash {
			continue
		}
		tampered := signed.without()
		tampered[key] = flipLast(value)
		assert.Falsef(t, client.Verify(tampered), "flipping %s should break the signature", key)
	}

	missing := signed.without(ParamSecureHash)
	assert.False(t, client.Verify(missing))
}

func TestParseAmount(t *testing.T) {
	got, err := ParseAmount("9664800")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(96648)))

	_, err = ParseAmount("abc")
	assert.Equal(t, pkgerrors.CodeContract, pkgerrors.CodeOf(err))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.VNPayConfig{HashSecret: "x", PayURL: "u"})
	assert.ErrorIs(t, err, errTmnCodeRequired)
	_, err = NewClient(config.VNPayConfig{TmnCode: "x", PayURL: "u"})
	assert.ErrorIs(t, err, errSecretRequired)
}

func flipLast(v string) string {
	if v == "" {
		return "x"
	}
	last := v[len(v)-1]
	if last == '0' {
		return v[:len(v)-1] + "1"
	}
	return v[:len(v)-1] + "0"
}
