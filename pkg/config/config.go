package config

// Config is the root configuration object. It is built once at process
// init (see Load) and injected into the queue drivers, the encryptor,
// the token service, and the gateway adapter.
type Config struct {
	App      AppConfig      `envPrefix:"APP_"`
	Queue    QueueConfig    `envPrefix:"QUEUE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	SQS      SQSConfig      `envPrefix:"SQS_"`
	Gateway  GatewayConfig  `envPrefix:"GATEWAY_"`
	Crypto   CryptoConfig   `envPrefix:"CRYPTO_"`
	Token    TokenConfig    `envPrefix:"TOKEN_"`
	Payment  PaymentConfig  `envPrefix:"PAYMENT_"`
	Mail     MailConfig     `envPrefix:"MAIL_"`
	Cache    CacheConfig    `envPrefix:"CACHE_"`
}

// AppConfig holds process-level settings
type AppConfig struct {
	Name string `env:"NAME" envDefault:"payworker"`
	Env  string `env:"ENV" envDefault:"dev"`
}

// QueueConfig holds queue driver selection and worker defaults
type QueueConfig struct {
	Driver      string `env:"DRIVER" envDefault:"redis"` // memory, redis, database, sqs
	Default     string `env:"DEFAULT" envDefault:"payments"`
	Concurrency int    `env:"CONCURRENCY" envDefault:"3"`
	MaxAttempts int    `env:"MAX_ATTEMPTS" envDefault:"3"`
	BackoffMs   int    `env:"BACKOFF_MS" envDefault:"2000"`
}

// RedisConfig holds configuration for Redis connection
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// DatabaseConfig holds configuration for SQL database connection
type DatabaseConfig struct {
	Connection string `env:"CONNECTION" envDefault:"mysql"` // mysql, pgsql
	Host       string `env:"HOST" envDefault:"localhost"`
	Port       string `env:"PORT" envDefault:"3306"`
	Database   string `env:"DATABASE" envDefault:"payworker"`
	Username   string `env:"USERNAME" envDefault:"root"`
	Password   string `env:"PASSWORD"`
	JobsTable  string `env:"JOBS_TABLE" envDefault:"jobs"`
}

// GatewayConfig holds the payment gateway endpoint and credentials
type GatewayConfig struct {
	PayURL     string `env:"PAY_URL" envDefault:"https://gateway.example.com/pay"`
	Secret     string `env:"SECRET"`
	MerchantID string `env:"MERCHANT_ID"`
}

// CryptoConfig holds the symmetric key for PII field encryption.
// Key may be a 64-char hex string or an arbitrary passphrase.
type CryptoConfig struct {
	Key string `env:"KEY"`
}

// TokenConfig holds the HMAC secret for redirect tokens
type TokenConfig struct {
	Secret     string `env:"SECRET"`
	TTLMinutes int    `env:"TTL_MINUTES" envDefault:"30"`
}

// PaymentConfig holds lifecycle policy knobs
type PaymentConfig struct {
	TimeoutMinutes int `env:"TIMEOUT_MINUTES" envDefault:"60"`
	RetentionDays  int `env:"RETENTION_DAYS" envDefault:"90"`
}

// MailConfig holds notification mailer settings
type MailConfig struct {
	Mailer      string `env:"MAILER" envDefault:"log"` // smtp, log
	Host        string `env:"HOST"`
	Port        string `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION"`
	FromAddress string `env:"FROM_ADDRESS"`
	FromName    string `env:"FROM_NAME"`
}

// CacheConfig selects the cache store backing duplicate-callback
// markers and scheduler locks
type CacheConfig struct {
	Store string `env:"STORE" envDefault:"redis"` // redis, none
}
