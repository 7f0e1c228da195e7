// Package config loads service configuration from an optional YAML file and
// FLEET_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Environment   string `mapstructure:"environment"`
	DevModeBypass bool   `mapstructure:"dev_mode_bypass"`

	Server struct {
		Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	} `mapstructure:"server"`
	Log struct {
		Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
		JSON  bool   `mapstructure:"json"`
	} `mapstructure:"log"`
	DB struct {
		Host     string `mapstructure:"host" validate:"required"`
		Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name" validate:"required"`
		SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	} `mapstructure:"db"`
	GenAI struct {
		APIKey            string        `mapstructure:"api_key"`
		TextModel         string        `mapstructure:"text_model" validate:"required"`
		SpeechModel       string        `mapstructure:"speech_model" validate:"required"`
		ImageModel        string        `mapstructure:"image_model" validate:"required"`
		VideoModel        string        `mapstructure:"video_model" validate:"required"`
		Voice             string        `mapstructure:"voice"`
		VideoAspectRatio  string        `mapstructure:"video_aspect_ratio" validate:"omitempty,oneof=16:9 9:16"`
		MaxToolTurns      int           `mapstructure:"max_tool_turns" validate:"min=1"`
		VideoPollInterval time.Duration `mapstructure:"video_poll_interval" validate:"gt=0"`
		// VideoMaxWait bounds video polling; zero waits until the request is cancelled.
		VideoMaxWait time.Duration `mapstructure:"video_max_wait" validate:"gte=0"`
	} `mapstructure:"genai"`
	Auth struct {
		OktaDomain      string `mapstructure:"okta_domain"`
		ClientID        string `mapstructure:"client_id"`
		ClientSecret    string `mapstructure:"client_secret"`
		RedirectURL     string `mapstructure:"redirect_url"`
		SwaggerClientID string `mapstructure:"swagger_client_id"`
	} `mapstructure:"auth"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file" validate:"required_if=Enable true"`
		KeyFile   string   `mapstructure:"key_file" validate:"required_if=Enable true"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
}

// IsDev reports whether the service runs in the development environment.
func (c *Config) IsDev() bool {
	return strings.EqualFold(c.Environment, "dev")
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

var defaults = map[string]any{
	"environment":               "PROD",
	"dev_mode_bypass":           false,
	"server.port":               8080,
	"server.shutdown_timeout":   "15s",
	"log.level":                 "info",
	"log.json":                  false,
	"db.host":                   "localhost",
	"db.port":                   5432,
	"db.user":                   "postgres",
	"db.password":               "",
	"db.name":                   "fleet",
	"db.sslmode":                "disable",
	"genai.api_key":             "",
	"genai.text_model":          "gemini-2.0-flash",
	"genai.speech_model":        "gemini-2.5-flash-preview-tts",
	"genai.image_model":         "gemini-2.0-flash-preview-image-generation",
	"genai.video_model":         "veo-2.0-generate-001",
	"genai.voice":               "Algenib",
	"genai.video_aspect_ratio":  "16:9",
	"genai.max_tool_turns":      5,
	"genai.video_poll_interval": "5s",
	"genai.video_max_wait":      "0s",
	"auth.okta_domain":          "",
	"auth.client_id":            "",
	"auth.client_secret":        "",
	"auth.redirect_url":         "",
	"auth.swagger_client_id":    "",
	"tls.enable":                false,
	"tls.cert_file":             "",
	"tls.key_file":              "",
	"tls.hostnames":             []string{"localhost"},
}

// LoadConfig loads the configuration from path, or from config.yaml in the
// working directory or ./config when path is empty, and then the
// environment. A missing default file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// normalize OKTA issuer url (strip trailing slash if any)
	config.Auth.OktaDomain = normalizeOktaIssuer(config.Auth.OktaDomain)

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// normalizeOktaIssuer trims whitespace and any trailing slash so the issuer
// can be pasted straight from the Okta admin console.
func normalizeOktaIssuer(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
