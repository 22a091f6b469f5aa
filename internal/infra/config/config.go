package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	TokenLeeway       time.Duration
	Issuer            string
	Audience          string

	PasswordPepper string
	ResetSecretTTL time.Duration

	HTTPAddress      string
	AllowedOrigins   []string
	AllowCredentials bool

	NotifierTimeout time.Duration
}

var required = []string{
	"DATABASE_URL",
	"REDIS_ADDRESS",
	"JWT_PRIVATE_KEY_PATH",
	"JWT_PUBLIC_KEY_PATH",
	"ACCESS_TOKEN_TTL",
	"REFRESH_TOKEN_TTL",
	"JWT_ISSUER",
	"JWT_AUDIENCE",
	"PASSWORD_PEPPER",
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	for _, key := range append(required,
		"REDIS_PASSWORD", "REDIS_DB",
		"TOKEN_LEEWAY", "RESET_SECRET_TTL",
		"HTTP_ADDRESS", "ALLOWED_ORIGINS", "ALLOW_CREDENTIALS",
		"NOTIFIER_TIMEOUT",
	) {
		if err := viper.BindEnv(key); err != nil {
			return nil, err
		}
	}

	viper.SetDefault("HTTP_ADDRESS", ":8080")
	viper.SetDefault("TOKEN_LEEWAY", "30s")
	viper.SetDefault("RESET_SECRET_TTL", "15m")
	viper.SetDefault("NOTIFIER_TIMEOUT", "5s")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file, %w", err)
		}
	}

	for _, key := range required {
		if viper.GetString(key) == "" {
			return nil, fmt.Errorf("required config key %s is not set", key)
		}
	}

	return &Config{
		DatabaseURL:       viper.GetString("DATABASE_URL"),
		RedisAddress:      viper.GetString("REDIS_ADDRESS"),
		RedisPassword:     viper.GetString("REDIS_PASSWORD"),
		RedisDB:           viper.GetInt("REDIS_DB"),
		JWTPrivateKeyPath: viper.GetString("JWT_PRIVATE_KEY_PATH"),
		JWTPublicKeyPath:  viper.GetString("JWT_PUBLIC_KEY_PATH"),
		AccessTokenTTL:    viper.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL:   viper.GetDuration("REFRESH_TOKEN_TTL"),
		TokenLeeway:       viper.GetDuration("TOKEN_LEEWAY"),
		Issuer:            viper.GetString("JWT_ISSUER"),
		Audience:          viper.GetString("JWT_AUDIENCE"),
		PasswordPepper:    viper.GetString("PASSWORD_PEPPER"),
		ResetSecretTTL:    viper.GetDuration("RESET_SECRET_TTL"),
		HTTPAddress:       viper.GetString("HTTP_ADDRESS"),
		AllowedOrigins:    viper.GetStringSlice("ALLOWED_ORIGINS"),
		AllowCredentials:  viper.GetBool("ALLOW_CREDENTIALS"),
		NotifierTimeout:   viper.GetDuration("NOTIFIER_TIMEOUT"),
	}, nil
}
