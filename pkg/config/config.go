package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Shipping     ShippingConfig
	Pricing      PricingConfig
	VNPay        VNPayConfig
	Broadcast    BroadcastConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Shipping.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"COFFEESHOP_APP_ENV" required:"true"`
	Port         string   `envconfig:"COFFEESHOP_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"COFFEESHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"COFFEESHOP_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"COFFEESHOP_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"COFFEESHOP_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"COFFEESHOP_DB_DSN"`
	Driver string `envconfig:"COFFEESHOP_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"COFFEESHOP_DB_HOST"`
	Port     int    `envconfig:"COFFEESHOP_DB_PORT" default:"5432"`
	User     string `envconfig:"COFFEESHOP_DB_USER"`
	Password string `envconfig:"COFFEESHOP_DB_PASSWORD"`
	Name     string `envconfig:"COFFEESHOP_DB_NAME"`
	SSLMode  string `envconfig:"COFFEESHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"COFFEESHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"COFFEESHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"COFFEESHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"COFFEESHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"COFFEESHOP_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"COFFEESHOP_REDIS_URL"`
	Address      string        `envconfig:"COFFEESHOP_REDIS_ADDR"`
	Password     string        `envconfig:"COFFEESHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"COFFEESHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"COFFEESHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"COFFEESHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"COFFEESHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"COFFEESHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"COFFEESHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"COFFEESHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"COFFEESHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"COFFEESHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ShippingConfig holds the distance based fee schedule.
type ShippingConfig struct {
	FirstKmRate  decimal.Decimal `envconfig:"COFFEESHOP_SHIPPING_FIRST_KM_RATE" default:"15000"`
	PerKmRate    decimal.Decimal `envconfig:"COFFEESHOP_SHIPPING_PER_KM_RATE" default:"5000"`
	MaxRadiusKm  float64         `envconfig:"COFFEESHOP_SHIPPING_MAX_RADIUS_KM" default:"20"`
	RoundingStep int64           `envconfig:"COFFEESHOP_SHIPPING_ROUNDING_STEP" default:"100"`
}

func (s ShippingConfig) validate() error {
	if s.MaxRadiusKm <= 0 {
		return fmt.Errorf("%s must be positive", EnvShippingMaxRadius)
	}
	if s.RoundingStep <= 0 {
		return fmt.Errorf("%s must be positive", EnvShippingRoundingStep)
	}
	// Non-positive rates are reported per request as a configuration error.
	return nil
}

type PricingConfig struct {
	TaxRate decimal.Decimal `envconfig:"COFFEESHOP_PRICING_TAX_RATE" default:"0.08"`
}

func (p PricingConfig) validate() error {
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvPricingTaxRate)
	}
	return nil
}

// VNPayConfig carries the merchant credentials and request defaults for the gateway.
type VNPayConfig struct {
	TmnCode        string        `envconfig:"COFFEESHOP_VNPAY_TMN_CODE" required:"true"`
	HashSecret     string        `envconfig:"COFFEESHOP_VNPAY_HASH_SECRET" required:"true"`
	PayURL         string        `envconfig:"COFFEESHOP_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL      string        `envconfig:"COFFEESHOP_VNPAY_RETURN_URL" required:"true"`
	APIURL         string        `envconfig:"COFFEESHOP_VNPAY_API_URL" default:"https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"`
	Version        string        `envconfig:"COFFEESHOP_VNPAY_VERSION" default:"2.1.0"`
	Command        string        `envconfig:"COFFEESHOP_VNPAY_COMMAND" default:"pay"`
	OrderType      string        `envconfig:"COFFEESHOP_VNPAY_ORDER_TYPE" default:"other"`
	Locale         string        `envconfig:"COFFEESHOP_VNPAY_LOCALE" default:"vn"`
	CurrCode       string        `envconfig:"COFFEESHOP_VNPAY_CURR_CODE" default:"VND"`
	ExpireAfter    time.Duration `envconfig:"COFFEESHOP_VNPAY_EXPIRE_AFTER" default:"15m"`
	Timezone       string        `envconfig:"COFFEESHOP_VNPAY_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	ReplayGuardTTL time.Duration `envconfig:"COFFEESHOP_VNPAY_REPLAY_GUARD_TTL" default:"24h"`
}

// Location resolves the gateway timezone, falling back to a fixed +07:00 zone.
func (v VNPayConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(v.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("ICT", 7*60*60)
}

type BroadcastConfig struct {
	Driver  string `envconfig:"COFFEESHOP_BROADCAST_DRIVER" default:"redis"`
	Channel string `envconfig:"COFFEESHOP_BROADCAST_CHANNEL" default:"orders"`
}

type FeatureFlagsConfig struct {
	AutoMigrate     bool `envconfig:"COFFEESHOP_AUTO_MIGRATE" default:"false"`
	RestockOnCancel bool `envconfig:"COFFEESHOP_FEATURE_RESTOCK_ON_CANCEL" default:"false"`
}

type OutboxConfig struct {
	Sink           string `envconfig:"COFFEESHOP_OUTBOX_SINK" default:"log"`
	BatchSize      int    `envconfig:"COFFEESHOP_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"COFFEESHOP_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"COFFEESHOP_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval            time.Duration `envconfig:"COFFEESHOP_CRON_INTERVAL" default:"1m"`
	LockKey             string        `envconfig:"COFFEESHOP_CRON_LOCK_KEY" default:"coffeeshop:cron:lock"`
	LockTTL             time.Duration `envconfig:"COFFEESHOP_CRON_LOCK_TTL" default:"5m"`
	PaymentGrace        time.Duration `envconfig:"COFFEESHOP_CRON_PAYMENT_GRACE" default:"5m"`
	ExpiryBatchSize     int           `envconfig:"COFFEESHOP_CRON_EXPIRY_BATCH_SIZE" default:"100"`
	OutboxRetentionDays int           `envconfig:"COFFEESHOP_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"COFFEESHOP_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic    string        `envconfig:"COFFEESHOP_PUBSUB_ORDERS_TOPIC" default:"coffeeshop-order-events"`
	OrderedByKey   bool          `envconfig:"COFFEESHOP_PUBSUB_ORDERED" default:"true"`
	PublishTimeout time.Duration `envconfig:"COFFEESHOP_PUBSUB_PUBLISH_TIMEOUT" default:"30s"`
}

type KafkaConfig struct {
	Brokers     []string `envconfig:"COFFEESHOP_KAFKA_BROKERS"`
	OrdersTopic string   `envconfig:"COFFEESHOP_KAFKA_ORDERS_TOPIC" default:"coffeeshop.orders"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
