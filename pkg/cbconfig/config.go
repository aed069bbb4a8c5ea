package cbconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/function61/gokit/envvar"
	"github.com/function61/gokit/jsonfile"
	"github.com/joho/godotenv"
)

const (
	// documented defaults, only usable outside production
	DefaultProjectId  = "default-project-id"
	DefaultAlertTopic = "default-alert-topic"

	DefaultListenAddr  = ":8080"
	DefaultBackoffUnit = time.Second

	confEnvKey = "CLOUDSQLBACKUP_CONF"
)

type AlertChannel string

const (
	AlertChannelPubSub AlertChannel = "pubsub"
	AlertChannelSns    AlertChannel = "sns"
	// function61/lambda-alertmanager
	AlertChannelAlertManager AlertChannel = "alertmanager"
)

type Config struct {
	ProjectId   string      `json:"project_id"`
	Alert       AlertConfig `json:"alert"`
	ListenAddr  string      `json:"listen_addr,omitempty"`
	BackoffUnit Duration    `json:"backoff_unit,omitempty"`
}

type AlertConfig struct {
	Channel AlertChannel    `json:"channel"`
	Topic        string              `json:"topic"` // Pub/Sub topic name or SNS topic ARN
	Sns          *AlertSnsConfig     `json:"sns,omitempty"`
	AlertManager *AlertManagerConfig `json:"alertmanager,omitempty"`
}

type AlertManagerConfig struct {
	BaseUrl string `json:"baseurl"`
}

type AlertSnsConfig struct {
	Region          string `json:"region"`
	AccessKeyId     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
}

// JSON-friendly time.Duration ("1s", "250ms")
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	str := string(bytes.Trim(data, `"`))

	parsed, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	d.Duration = parsed
	return nil
}

// reads config either from base64-encoded JSON in CLOUDSQLBACKUP_CONF, or
// from individual ENV variables. a ".env" file is honored if present.
func ReadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{}
	confFromEnv, err := envvar.RequiredFromBase64Encoded(confEnvKey)
	if err == nil {
		if err := jsonfile.Unmarshal(bytes.NewBuffer(confFromEnv), conf, true); err != nil {
			return nil, fmt.Errorf("%s: %w", confEnvKey, err)
		}
	} else if os.Getenv(confEnvKey) != "" { // set, but not decodable
		return nil, fmt.Errorf("%s: %w", confEnvKey, err)
	} else {
		conf, err = fromIndividualEnvs()
		if err != nil {
			return nil, err
		}
	}

	conf.ApplyDefaults()

	return conf, conf.Validate()
}

func fromIndividualEnvs() (*Config, error) {
	conf := &Config{
		ProjectId: os.Getenv("PROJECT_ID"),
		Alert: AlertConfig{
			Channel: AlertChannel(os.Getenv("ALERT_CHANNEL")),
			Topic:   os.Getenv("ALERT_TOPIC"),
		},
		ListenAddr: os.Getenv("LISTEN_ADDR"),
	}

	if conf.ListenAddr == "" && os.Getenv("PORT") != "" {
		conf.ListenAddr = ":" + os.Getenv("PORT")
	}

	if region := os.Getenv("ALERT_SNS_REGION"); region != "" {
		conf.Alert.Sns = &AlertSnsConfig{
			Region:          region,
			AccessKeyId:     os.Getenv("ALERT_SNS_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("ALERT_SNS_ACCESS_KEY_SECRET"),
		}
	}

	if baseUrl := os.Getenv("ALERT_ALERTMANAGER_BASEURL"); baseUrl != "" {
		conf.Alert.AlertManager = &AlertManagerConfig{
			BaseUrl: baseUrl,
		}
	}

	if backoffUnit := os.Getenv("BACKOFF_UNIT"); backoffUnit != "" {
		parsed, err := time.ParseDuration(backoffUnit)
		if err != nil {
			return nil, fmt.Errorf("BACKOFF_UNIT: %w", err)
		}

		conf.BackoffUnit = Duration{parsed}
	}

	return conf, nil
}

// fills in documented defaults for unset fields
func (c *Config) ApplyDefaults() {
	if c.ProjectId == "" {
		c.ProjectId = DefaultProjectId
	}

	if c.Alert.Topic == "" {
		c.Alert.Topic = DefaultAlertTopic
	}

	if c.Alert.Channel == "" {
		c.Alert.Channel = AlertChannelPubSub
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.BackoffUnit.Duration == 0 {
		c.BackoffUnit = Duration{DefaultBackoffUnit}
	}
}

func (c *Config) Validate() error {
	if c.ProjectId == "" {
		return errors.New("project_id not set")
	}

	if c.Alert.Topic == "" {
		return errors.New("alert topic not set")
	}

	switch c.Alert.Channel {
	case AlertChannelPubSub:
	case AlertChannelSns:
		if c.Alert.Sns == nil {
			return errors.New("alert channel sns requires sns config")
		}
	case AlertChannelAlertManager:
		if c.Alert.AlertManager == nil || c.Alert.AlertManager.BaseUrl == "" {
			return errors.New("alert channel alertmanager requires alertmanager baseurl")
		}
	default:
		return fmt.Errorf("unsupported alert channel: %s", c.Alert.Channel)
	}

	if c.BackoffUnit.Duration <= 0 {
		return fmt.Errorf("backoff_unit must be positive; got %s", c.BackoffUnit)
	}

	return nil
}

// reports whether non-production defaults are in use
func (c *Config) UsesDefaults() bool {
	return c.ProjectId == DefaultProjectId || c.Alert.Topic == DefaultAlertTopic
}

const redacted = "<redacted>"

// copy that is safe to display. secrets are replaced.
func (c Config) Redacted() *Config {
	if c.Alert.Sns != nil {
		sns := *c.Alert.Sns
		if sns.AccessKeySecret != "" {
			sns.AccessKeySecret = redacted
		}

		c.Alert.Sns = &sns
	}

	return &c
}
