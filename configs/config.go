package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds every setting the store reads at startup.
type Config struct {
	App struct {
		Env           string `mapstructure:"env"`
		Addr          string `mapstructure:"addr"`
		SessionSecret string `mapstructure:"session_secret"`
	} `mapstructure:"app"`
	Database DatabaseConfig      `mapstructure:"database"`
	OIDC     OIDCConfig          `mapstructure:"oidc"`
	Redis    RedisConfig         `mapstructure:"redis"`
	Kafka    KafkaConfig         `mapstructure:"kafka"`
	Storage  StorageConfig       `mapstructure:"storage"`
	Email    EmailConfig         `mapstructure:"email"`
	SMS      AfricaTalkingConfig `mapstructure:"sms"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres or sqlite
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	TimeZone string `mapstructure:"timezone"`
	Path     string `mapstructure:"path"` // sqlite file
}

type OIDCConfig struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StorageConfig struct {
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type AfricaTalkingConfig struct {
	Username string `mapstructure:"username"`
	APIKey   string `mapstructure:"api_key"`
	SMSURL   string `mapstructure:"url"`
	SenderID string `mapstructure:"sender_id"`
}

type EmailConfig struct {
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	AWSRegion          string `mapstructure:"aws_region"`
	SenderEmail        string `mapstructure:"sender"`
}

// env names used by the existing deployment
var envBindings = map[string]string{
	"app.session_secret":          "SESSION_SECRET",
	"database.host":               "POSTGRES_HOST",
	"database.user":               "POSTGRES_USER",
	"database.password":           "POSTGRES_PASSWORD",
	"database.name":               "POSTGRES_DB",
	"database.port":               "DB_PORT",
	"oidc.issuer":                 "OIDC_ISSUER",
	"oidc.client_id":              "OIDC_CLIENT_ID",
	"oidc.client_secret":          "OIDC_CLIENT_SECRET",
	"oidc.redirect_url":           "OIDC_REDIRECT_URL",
	"sms.username":                "AT_USERNAME",
	"sms.api_key":                 "AT_API_KEY",
	"sms.url":                     "AT_SMS_URL",
	"sms.sender_id":               "AT_SENDER_ID",
	"email.aws_access_key_id":     "AWS_ACCESS_KEY_ID",
	"email.aws_secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"email.aws_region":            "AWS_REGION",
	"email.sender":                "AWS_SENDER_ADDRESS",
	"storage.region":              "AWS_REGION",
}

// Load reads config/config.yml when present, then applies environment
// variables on top of the defaults.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "./config")
}

func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("app.env", "development")
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.session_secret", "change-me")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "test")
	v.SetDefault("database.password", "test")
	v.SetDefault("database.name", "test")
	v.SetDefault("database.timezone", "Asia/Riyadh")
	v.SetDefault("database.path", "nuomi.db")
	v.SetDefault("kafka.topic", "orders.status")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("sms.url", "https://api.sandbox.africastalking.com/version1/messaging")
	v.SetDefault("sms.sender_id", "AFRICASTKNG")
	v.SetDefault("email.aws_region", "us-east-1")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
