package httpclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTLSConfigSecureDefaults(t *testing.T) {
	cfg := Secure()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.ValidateCertificates)
	assert.False(t, cfg.AcceptInvalidHostnames)
}

func TestTLSConfigDevelopmentAcceptsInvalidHostnames(t *testing.T) {
	cfg := Development()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AcceptInvalidHostnames)
}

func TestTLSConfigTestingDisablesValidation(t *testing.T) {
	cfg := Testing()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.ValidateCertificates)
}

func TestTLSConfigRejectsMaxBelowMin(t *testing.T) {
	cfg := TLSConfig{MinVersion: TLSVersion13, MaxVersion: TLSVersion12}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_version")
}

func TestTLSConfigRejectsClientCertInBothForms(t *testing.T) {
	cfg := TLSConfig{
		ClientCertFile: "cert.pem",
		ClientKeyFile:  "key.pem",
		ClientCertPEM:  "-----BEGIN CERTIFICATE-----",
		ClientKeyPEM:   "-----BEGIN KEY-----",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both file and PEM")
}

func TestTLSConfigRejectsCertWithoutKey(t *testing.T) {
	cfg := TLSConfig{ClientCertFile: "cert.pem"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires both")
}

func TestTLSConfigBuildTransportDefaultsOK(t *testing.T) {
	cfg := Secure()
	transport, err := cfg.buildTransport()
	require.NoError(t, err)
	assert.NotNil(t, transport)
}
