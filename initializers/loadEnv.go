package initializers

import (
	"errors"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type AppConfig struct {
	Port    string `env:"PORT,default=8080"`
	AppEnv  string `env:"APP_ENV,default=development"`
	DSN     string `env:"DB_DSN"`
	BaseURL string `env:"BASE_URL,default=http://localhost:8080"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	CookieDomain    string        `env:"COOKIE_DOMAIN"`
	CookieSecure    bool          `env:"COOKIE_SECURE,default=true"`

	FrontendURL    string   `env:"FRONTEND_URL,default=http://localhost:4200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:4200;https://www.amexan.store"`

	FromEmail         string `env:"FROM_EMAIL"`
	FromEmailPassword string `env:"FROM_EMAIL_PASSWORD"`
	FromEmailSMTP     string `env:"FROM_EMAIL_SMTP"`
	SMTPAddress       string `env:"SMTP_ADDRESS"`
	LogoURL           string `env:"LOGO_URL,default=https://www.amexan.store/images/logo.jpg"`

	PesapalBaseURL        string `env:"PESAPAL_BASE_URL,default=https://pay.pesapal.com/v3"`
	PesapalConsumerKey    string `env:"PESAPAL_CONSUMER_KEY"`
	PesapalConsumerSecret string `env:"PESAPAL_CONSUMER_SECRET"`
	PesapalNotificationID string `env:"PESAPAL_NOTIFICATION_ID"`
	PesapalCallbackURL    string `env:"PESAPAL_CALLBACK_URL,default=https://amexan.store/payment/callback"`
	PesapalCurrency       string `env:"PESAPAL_CURRENCY,default=KES"`

	S3Bucket string `env:"S3_BUCKET,default=amexan"`
	S3Prefix string `env:"S3_PREFIX,default=products"`

	AuthRatePerSecond int `env:"AUTH_RATE_PER_SECOND,default=5"`
	AuthRateBurst     int `env:"AUTH_RATE_BURST,default=10"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

func (c AppConfig) IsProduction() bool {
	return c.AppEnv == "production"
}

var Config AppConfig

// LoadEnv reads .env when present. Real environment variables take precedence.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Could not load .env file")
	}
}

func LoadConfig() error {
	var cfg AppConfig
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.DSN == "" {
		return errors.New("DB_DSN is required")
	}
	Config = cfg
	return nil
}
