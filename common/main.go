package common

import (
	"time"

	"github.com/mcnijman/go-emailaddress"
	"github.com/spf13/viper"
)

// AMQPSettings represents the settings that we require in order to connect to the AMQP exchange.
type AMQPSettings struct {
	URI          string
	ExchangeName string
	ExchangeType string
}

// DefaultRetentionDays is how long feed entries are kept before pruning when
// the configuration doesn't say otherwise.
const DefaultRetentionDays = 7

// NotificationSettings gathers the notifier-specific configuration values so
// they travel through the wiring as one explicit object.
type NotificationSettings struct {
	AppURL              string
	EmailServiceBaseURL string
	EmailRequestTimeout time.Duration
	EmailMaxRetries     int
	MaxConcurrentSends  int
	RetentionDays       int
}

// LoadNotificationSettings extracts the notification settings from the
// configuration.
func LoadNotificationSettings(cfg *viper.Viper) *NotificationSettings {
	retentionDays := cfg.GetInt("notifications.retention_days")
	if retentionDays < 1 {
		retentionDays = DefaultRetentionDays
	}
	return &NotificationSettings{
		AppURL:              cfg.GetString("notifications.app_url"),
		EmailServiceBaseURL: cfg.GetString("notifications.email_service_base_url"),
		EmailRequestTimeout: time.Duration(cfg.GetInt("notifications.email_request_timeout_seconds")) * time.Second,
		EmailMaxRetries:     cfg.GetInt("notifications.email_max_retries"),
		MaxConcurrentSends:  cfg.GetInt("notifications.max_concurrent_sends"),
		RetentionDays:       retentionDays,
	}
}

// ValidateEmailAddress returns an error if the format of an email address is invalid.
func ValidateEmailAddress(emailAddress string) error {
	_, err := emailaddress.Parse(emailAddress)
	return err
}
