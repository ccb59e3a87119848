// Package kafka is the public surface of the client: Client, Producer,
// Consumer, Admin and their toml-tagged Config records, grounded on
// services/kafka/config.go's field-tagging style and
// services/kafka/service.go's Cluster lifecycle (Open/Close, stats ticker,
// atomic counters).
package kafka

import (
	"crypto/tls"
	"time"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/metrics"
	"github.com/kafkaclient/kafka/tlsconfig"
)

// Config is shared across Producer, Consumer and Admin: the broker seed
// list, transport options, and the collaborators (diagnostic, metrics)
// every component accepts instead of reaching for a package-level default.
type Config struct {
	Brokers []string `toml:"brokers"`
	ClientID string  `toml:"client_id"`

	DialTimeout    time.Duration `toml:"dial_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	MaxInflight    int           `toml:"max_inflight"`

	// UseSSL builds TLS from the cert/key/CA paths below via tlsconfig.Create
	// at withDefaults time. Set TLS directly instead when the caller already
	// holds a *tls.Config (e.g. built in-process rather than from files).
	UseSSL             bool   `toml:"use_ssl"`
	SSLCA              string `toml:"ssl_ca"`
	SSLCert            string `toml:"ssl_cert"`
	SSLKey             string `toml:"ssl_key"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`

	TLS  *tls.Config      `toml:"-"`
	SASL *conn.SASLConfig `toml:"-"`

	BreakerErrorThreshold   int           `toml:"breaker_error_threshold"`
	BreakerSuccessThreshold int           `toml:"breaker_success_threshold"`
	BreakerTimeout          time.Duration `toml:"breaker_timeout"`

	Diag    diagnostic.Diagnostic `toml:"-"`
	Metrics metrics.Metrics       `toml:"-"`
}

// NewConfig returns a Config with the same sane defaults Dial/pool.New
// would otherwise apply silently, so a caller inspecting a zero-value
// Config before calling Validate sees what will actually be used.
func NewConfig() Config {
	return Config{
		ClientID:                "kafka-go-client",
		DialTimeout:             10 * time.Second,
		RequestTimeout:          30 * time.Second,
		MaxInflight:             128,
		BreakerErrorThreshold:   5,
		BreakerSuccessThreshold: 1,
		BreakerTimeout:          30 * time.Second,
	}
}

// Validate applies spec's strict-mode option checking: required fields
// present, no negative durations/counts. This package has no TOML loader of
// its own, and Validate does not check for unknown keys.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return kerrors.User("kafka: config requires at least one broker address")
	}
	if c.DialTimeout < 0 {
		return kerrors.User("kafka: dial_timeout must not be negative")
	}
	if c.RequestTimeout < 0 {
		return kerrors.User("kafka: request_timeout must not be negative")
	}
	if c.MaxInflight < 0 {
		return kerrors.User("kafka: max_inflight must not be negative")
	}
	if c.SASL != nil {
		switch c.SASL.Mechanism {
		case conn.MechanismPlain, conn.MechanismScramSHA256, conn.MechanismScramSHA512:
		default:
			return kerrors.User("kafka: unsupported sasl mechanism %q", c.SASL.Mechanism)
		}
	}
	if c.TLS == nil && (c.UseSSL || c.SSLCA != "" || c.SSLCert != "" || c.SSLKey != "") {
		if _, err := tlsconfig.Create(c.SSLCA, c.SSLCert, c.SSLKey, c.InsecureSkipVerify); err != nil {
			return kerrors.Wrap(kerrors.UserError, err, "kafka: building TLS config")
		}
	}
	return nil
}

func (c *Config) withDefaults() Config {
	out := *c
	d := NewConfig()
	if out.TLS == nil && (out.UseSSL || out.SSLCA != "" || out.SSLCert != "" || out.SSLKey != "") {
		// A tlsconfig.Create error is surfaced by Validate, not here, so withDefaults stays
		// infallible the way the rest of this method is.
		out.TLS, _ = tlsconfig.Create(out.SSLCA, out.SSLCert, out.SSLKey, out.InsecureSkipVerify)
	}
	if out.ClientID == "" {
		out.ClientID = d.ClientID
	}
	if out.DialTimeout == 0 {
		out.DialTimeout = d.DialTimeout
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = d.RequestTimeout
	}
	if out.MaxInflight == 0 {
		out.MaxInflight = d.MaxInflight
	}
	if out.BreakerErrorThreshold == 0 {
		out.BreakerErrorThreshold = d.BreakerErrorThreshold
	}
	if out.BreakerSuccessThreshold == 0 {
		out.BreakerSuccessThreshold = d.BreakerSuccessThreshold
	}
	if out.BreakerTimeout == 0 {
		out.BreakerTimeout = d.BreakerTimeout
	}
	if out.Diag == nil {
		out.Diag = diagnostic.Discard
	}
	if out.Metrics == nil {
		out.Metrics = metrics.Discard
	}
	return out
}

// Acks mirrors the broker's produce acknowledgement levels.
type Acks int16

const (
	AcksNoResponse Acks = 0
	AcksLeader     Acks = 1
	AcksAll        Acks = -1
)

func (a Acks) Validate() error {
	switch a {
	case AcksNoResponse, AcksLeader, AcksAll:
		return nil
	default:
		return kerrors.User("kafka: acks must be one of NO_RESPONSE(0)/LEADER(1)/ALL(-1), got %d", a)
	}
}

// ResetPolicy selects where a consumer repositions after OFFSET_OUT_OF_RANGE.
type ResetPolicy int

const (
	ResetEarliest ResetPolicy = iota
	ResetLatest
)

func (r ResetPolicy) Validate() error {
	switch r {
	case ResetEarliest, ResetLatest:
		return nil
	default:
		return kerrors.User("kafka: reset policy must be earliest or latest")
	}
}
