package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigValidateRequiresBrokers(t *testing.T) {
	cfg := NewConfig()
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsNegativeDialTimeout(t *testing.T) {
	cfg := NewConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.DialTimeout = -1
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsMissingTLSFiles(t *testing.T) {
	cfg := NewConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.SSLCert = "/does/not/exist.pem"
	require.Error(t, cfg.Validate())
}

func TestConfigWithDefaultsBuildsTLSFromUseSSL(t *testing.T) {
	cfg := NewConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.UseSSL = true
	cfg.InsecureSkipVerify = true
	out := cfg.withDefaults()
	require.NotNil(t, out.TLS)
	require.True(t, out.TLS.InsecureSkipVerify)
}

func TestConfigWithDefaultsLeavesTLSNilWhenUnset(t *testing.T) {
	cfg := NewConfig()
	cfg.Brokers = []string{"localhost:9092"}
	out := cfg.withDefaults()
	require.Nil(t, out.TLS)
}
