// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/x509"
	"net"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		mode     string
		certFile string
		expected TLSMode
	}{
		{"explicit off", "checkin.example.com", "off", "", TLSModeOff},
		{"explicit selfsigned", "localhost", "selfsigned", "", TLSModeSelfSigned},
		{"explicit manual", "localhost", "MANUAL", "", TLSModeManual},
		{"auto localhost", "localhost", "auto", "", TLSModeOff},
		{"auto with cert files", "10.0.0.5", "auto", "cert.pem", TLSModeManual},
		{"auto ip falls back to selfsigned", "10.0.0.5", "", "", TLSModeSelfSigned},
		{"auto hostname without email", "checkin.example.com", "auto", "", TLSModeSelfSigned},
		{"unknown mode treated as auto", "127.0.0.1", "bogus", "", TLSModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Server: config.ServerConfig{Host: tt.host},
				TLS:    config.TLSConfig{Mode: tt.mode},
			}
			if tt.certFile != "" {
				cfg.TLS.CertFile = tt.certFile
				cfg.TLS.KeyFile = "key.pem"
			}

			assert.Equal(t, tt.expected, resolveTLSMode(cfg))
		})
	}
}

func TestSetupSelfSigned(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "10.0.0.5"},
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: t.TempDir()},
	}

	first, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, TLSModeSelfSigned, first.Mode)
	require.Len(t, first.TLSConfig.Certificates, 1)
	assert.FileExists(t, filepath.Join(cfg.TLS.CertDir, "selfsigned", "cert.pem"))

	leaf, err := x509.ParseCertificate(first.TLSConfig.Certificates[0].Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.Equal(t, "10.0.0.5", leaf.IPAddresses[0].String())

	// A second start reuses the stored certificate.
	second, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, first.TLSConfig.Certificates[0].Certificate[0], second.TLSConfig.Certificates[0].Certificate[0])
}

func leafOf(t *testing.T, res *TLSResult) *x509.Certificate {
	t.Helper()
	require.Len(t, res.TLSConfig.Certificates, 1)
	leaf, err := x509.ParseCertificate(res.TLSConfig.Certificates[0].Certificate[0])
	require.NoError(t, err)
	return leaf
}

func ipStrings(ips []net.IP) []string {
	out := make([]string, len(ips))
	for i, ip := range ips {
		out[i] = ip.String()
	}
	return out
}

func stubInterfaceAddrs(t *testing.T, ips ...string) {
	t.Helper()
	orig := interfaceAddrs
	t.Cleanup(func() { interfaceAddrs = orig })
	interfaceAddrs = func() ([]net.Addr, error) {
		addrs := []net.Addr{&net.IPNet{IP: net.IPv4(127, 0, 0, 1), Mask: net.CIDRMask(8, 32)}}
		for _, ip := range ips {
			addrs = append(addrs, &net.IPNet{IP: net.ParseIP(ip), Mask: net.CIDRMask(24, 32)})
		}
		return addrs, nil
	}
}

func TestSetupSelfSigned_HostChangeRegenerates(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "10.0.0.5"},
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: t.TempDir()},
	}
	first, err := SetupTLS(cfg)
	require.NoError(t, err)

	cfg.Server.Host = "10.0.0.6"
	second, err := SetupTLS(cfg)
	require.NoError(t, err)

	leaf := leafOf(t, second)
	assert.Contains(t, ipStrings(leaf.IPAddresses), "10.0.0.6")
	assert.NotContains(t, ipStrings(leaf.IPAddresses), "10.0.0.5")
	assert.NotEqual(t, first.TLSConfig.Certificates[0].Certificate[0], second.TLSConfig.Certificates[0].Certificate[0])
}

func TestSetupSelfSigned_AllInterfacesFollowsLANAddress(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "0.0.0.0"},
		TLS:    config.TLSConfig{Mode: "selfsigned", CertDir: t.TempDir()},
	}

	stubInterfaceAddrs(t, "192.168.1.10")
	first, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Contains(t, ipStrings(leafOf(t, first).IPAddresses), "192.168.1.10")

	// Same network: the stored certificate is reused.
	again, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, first.TLSConfig.Certificates[0].Certificate[0], again.TLSConfig.Certificates[0].Certificate[0])

	// The machine moved to another network.
	stubInterfaceAddrs(t, "10.1.2.3")
	moved, err := SetupTLS(cfg)
	require.NoError(t, err)

	ips := ipStrings(leafOf(t, moved).IPAddresses)
	assert.Contains(t, ips, "10.1.2.3")
	assert.Contains(t, ips, "127.0.0.1")
	assert.NotContains(t, ips, "192.168.1.10")
}

func TestReusable(t *testing.T) {
	leaf := &x509.Certificate{
		NotAfter:    time.Now().Add(90 * 24 * time.Hour),
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("10.0.0.5"), net.IPv4(127, 0, 0, 1)},
	}

	assert.True(t, reusable(leaf, []string{"localhost"}, []net.IP{net.ParseIP("10.0.0.5")}))
	assert.False(t, reusable(leaf, []string{"checkin.example.com"}, nil))
	assert.False(t, reusable(leaf, nil, []net.IP{net.ParseIP("10.0.0.6")}))
	assert.False(t, reusable(nil, nil, nil))

	leaf.NotAfter = time.Now().Add(7 * 24 * time.Hour)
	assert.False(t, reusable(leaf, nil, nil))
}

func TestSetupACME_RequiresEmailAndHostname(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "checkin.example.com", Port: 443},
		TLS:    config.TLSConfig{Mode: "acme", CertDir: t.TempDir()},
	}
	_, err := SetupTLS(cfg)
	require.Error(t, err)

	cfg.TLS.Email = "ops@example.com"
	res, err := SetupTLS(cfg)
	require.NoError(t, err)
	assert.Equal(t, TLSModeACME, res.Mode)
	assert.NotNil(t, res.CertManager)
	assert.NotNil(t, res.HTTPHandler)

	cfg.Server.Host = "10.0.0.5"
	_, err = SetupTLS(cfg)
	assert.Error(t, err)
}

func TestSetupManual_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		TLS: config.TLSConfig{
			Mode:     "manual",
			CertFile: filepath.Join(dir, "cert.pem"),
			KeyFile:  filepath.Join(dir, "key.pem"),
		},
	}

	_, err := SetupTLS(cfg)

	assert.Error(t, err)
}

func TestLanAddresses(t *testing.T) {
	stubInterfaceAddrs(t, "192.168.1.10")

	assert.Equal(t, []string{"192.168.1.10"}, ipStrings(lanAddresses()))
}
