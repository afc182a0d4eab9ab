package service

type Config struct {
	DatabaseUri             string  `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int     `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int     `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int     `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	DatabaseTimeout         int     `envconfig:"DATABASE_TIMEOUT" default:"60"`             // 60 seconds
	Environment             string  `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN               string  `envconfig:"SENTRY_DSN"`
	SentryTracesSampleRate  float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE"`
	DatadogAgentUrl         string  `envconfig:"DATADOG_AGENT_URL"`
	LogFilePath             string  `envconfig:"LOG_FILE_PATH"`
	JWTSecret               []byte  `envconfig:"JWT_SECRET" required:"true"`
	AdminToken              string  `envconfig:"ADMIN_TOKEN"`
	JWTRefreshTokenExpiry   int     `envconfig:"JWT_REFRESH_EXPIRY" default:"604800"` // in seconds, default 7 days
	JWTAccessTokenExpiry    int     `envconfig:"JWT_ACCESS_EXPIRY" default:"172800"`  // in seconds, default 2 days
	Host                    string  `envconfig:"HOST" default:"localhost:3000"`
	Port                    int     `envconfig:"PORT" default:"3000"`
	DefaultRateLimit        int     `envconfig:"DEFAULT_RATE_LIMIT" default:"10"`
	StrictRateLimit         int     `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit          int     `envconfig:"BURST_RATE_LIMIT" default:"1"`
	WebhookRateLimit        int     `envconfig:"WEBHOOK_RATE_LIMIT" default:"50"`
	EnablePrometheus        bool    `envconfig:"ENABLE_PROMETHEUS" default:"false"`
	PrometheusPort          int     `envconfig:"PROMETHEUS_PORT" default:"9092"`
	AllowUserCreation       bool    `envconfig:"ALLOW_USER_CREATION" default:"true"`
	PendingSweepInterval    int     `envconfig:"PENDING_SWEEP_INTERVAL" default:"3600"` // in seconds
	PendingSweepMinAge      int     `envconfig:"PENDING_SWEEP_MIN_AGE" default:"900"`   // in seconds
	RabbitMQUri             string  `envconfig:"RABBITMQ_URI"`
	RabbitMQPaymentExchange string  `envconfig:"RABBITMQ_PAYMENT_EXCHANGE" default:"fundhub_payment"`
	RabbitMQAuditExchange   string  `envconfig:"RABBITMQ_AUDIT_EXCHANGE" default:"fundhub_audit"`
	RabbitMQNotifyExchange  string  `envconfig:"RABBITMQ_NOTIFY_EXCHANGE" default:"fundhub_notification"`
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
