/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	ContentEventQueue          string `mapstructure:"CONTENT_EVENT_QUEUE"`
	ReceiptServiceURL          string `mapstructure:"RECEIPT_SERVICE_URL"`
	ReceiptServiceAPIKey       string `mapstructure:"RECEIPT_SERVICE_API_KEY"`
	PushServiceURL             string `mapstructure:"PUSH_SERVICE_URL"`
	PushServiceAPIKey          string `mapstructure:"PUSH_SERVICE_API_KEY"`
	GatewayWebhookSecret       string `mapstructure:"GATEWAY_WEBHOOK_SECRET"`
	ConfirmRateLimitPerMinute  int    `mapstructure:"CONFIRM_RATE_LIMIT_PER_MINUTE"`
	ProcessingFeeMinimumJMD    string `mapstructure:"PROCESSING_FEE_MIN_JMD"`
	ProcessingFeePercent       string `mapstructure:"PROCESSING_FEE_PERCENT"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CONTENT_EVENT_QUEUE", "payment_service.content_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "causeway:rate_limit")
	viper.SetDefault("CONFIRM_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("PROCESSING_FEE_MIN_JMD", "135")
	viper.SetDefault("PROCESSING_FEE_PERCENT", "0.03")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CONTENT_EVENT_QUEUE")
	_ = viper.BindEnv("RECEIPT_SERVICE_URL")
	_ = viper.BindEnv("RECEIPT_SERVICE_API_KEY")
	_ = viper.BindEnv("PUSH_SERVICE_URL")
	_ = viper.BindEnv("PUSH_SERVICE_API_KEY")
	_ = viper.BindEnv("GATEWAY_WEBHOOK_SECRET")
	_ = viper.BindEnv("CONFIRM_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PROCESSING_FEE_MIN_JMD")
	_ = viper.BindEnv("PROCESSING_FEE_PERCENT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "causeway:rate_limit"
	}
	config.ProcessingFeeMinimumJMD = strings.TrimSpace(config.ProcessingFeeMinimumJMD)
	if config.ProcessingFeeMinimumJMD == "" {
		config.ProcessingFeeMinimumJMD = "135"
	}
	config.ProcessingFeePercent = strings.TrimSpace(config.ProcessingFeePercent)
	if config.ProcessingFeePercent == "" {
		config.ProcessingFeePercent = "0.03"
	}
	if config.ConfirmRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative confirm rate limit configured; disabling\" limit=%d", config.ConfirmRateLimitPerMinute)
		config.ConfirmRateLimitPerMinute = 0
	}

	return
}
