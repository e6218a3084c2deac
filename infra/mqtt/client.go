package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Config defines the broker connection and the topics used by the gateway.
type Config struct {
	Broker      string          `json:"broker" koanf:"broker"`
	ClientID    string          `json:"client_id" koanf:"client_id"`
	Username    string          `json:"username" koanf:"username"`
	Password    string          `json:"password" koanf:"password"`
	FrameTopic  string          `json:"frame_topic" koanf:"frame_topic"`
	ReplyTopic  string          `json:"reply_topic" koanf:"reply_topic"`
	StatusTopic string          `json:"status_topic" koanf:"status_topic"`
	UseTLS      bool            `json:"use_tls" koanf:"use_tls"`
	ClientCert  string          `json:"client_cert" koanf:"client_cert"`
	ClientKey   string          `json:"client_key" koanf:"client_key"`
	CABundle    string          `json:"ca_bundle" koanf:"ca_bundle"`
	AuthMethod  string          `json:"auth_method" koanf:"auth_method"`
	QoS         map[string]byte `json:"qos" koanf:"qos"`
	LWTTopic    string          `json:"lwt_topic" koanf:"lwt_topic"`
	LWTPayload  string          `json:"lwt_payload" koanf:"lwt_payload"`
	LWTQoS      byte            `json:"lwt_qos" koanf:"lwt_qos"`
	LWTRetain   bool            `json:"lwt_retain" koanf:"lwt_retain"`
	MaxRetries  int             `json:"max_retries" koanf:"max_retries"`
	BackoffMS   int             `json:"backoff_ms" koanf:"backoff_ms"`
	TLSConfig   *tls.Config     `json:"-" koanf:"-"`
}

// SetDefaults fills the topics, the retry policy and a random client id.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "stbs-" + uuid.NewString()
	}
	if c.FrameTopic == "" {
		c.FrameTopic = "stbs/frames/in"
	}
	if c.ReplyTopic == "" {
		c.ReplyTopic = "stbs/frames/out"
	}
	if c.StatusTopic == "" {
		c.StatusTopic = "stbs/status"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate reports missing connection settings.
func (c Config) Validate() error {
	var errs []error
	if c.Broker == "" {
		errs = append(errs, errors.New("mqtt.broker is required"))
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		errs = append(errs, fmt.Errorf("mqtt.auth_method: unsupported %q", c.AuthMethod))
	}
	for k, q := range c.QoS {
		if q > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos.%s: must be 0, 1 or 2", k))
		}
	}
	return errors.Join(errs...)
}

func (c Config) qos(kind string) byte {
	if q, ok := c.QoS[kind]; ok {
		return q
	}
	return 0
}

// pahoClient is the subset of paho.Client used by the gateway.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	// replies are published from the message handler
	opts.SetOrderMatters(false)
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("ca bundle %s: no certificates", c.CABundle)
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
