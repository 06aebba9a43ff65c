package config

const (
	EnvPrefix = "COFFEESHOP"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "COFFEESHOP_APP_ENV"
	EnvJWTSecret     = "COFFEESHOP_JWT_SECRET"
	EnvJWTIssuer     = "COFFEESHOP_JWT_ISSUER"
	EnvVNPayTmnCode  = "COFFEESHOP_VNPAY_TMN_CODE"
	EnvVNPaySecret   = "COFFEESHOP_VNPAY_HASH_SECRET"
	EnvVNPayReturn   = "COFFEESHOP_VNPAY_RETURN_URL"
	EnvKafkaBrokers  = "COFFEESHOP_KAFKA_BROKERS"
	EnvShippingFirst = "COFFEESHOP_SHIPPING_FIRST_KM_RATE"

	EnvDBDSN  = "COFFEESHOP_DB_DSN"
	EnvDBHost = "COFFEESHOP_DB_HOST"
	EnvDBUser = "COFFEESHOP_DB_USER"
	EnvDBName = "COFFEESHOP_DB_NAME"

	EnvShippingMaxRadius    = "COFFEESHOP_SHIPPING_MAX_RADIUS_KM"
	EnvShippingRoundingStep = "COFFEESHOP_SHIPPING_ROUNDING_STEP"
	EnvPricingTaxRate       = "COFFEESHOP_PRICING_TAX_RATE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
