// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode is the resolved way the check-in server terminates TLS.
type TLSMode string

const (
	TLSModeOff        TLSMode = "off"
	TLSModeACME       TLSMode = "acme"
	TLSModeSelfSigned TLSMode = "selfsigned"
	TLSModeManual     TLSMode = "manual"
)

const (
	selfSignedValidity = 365 * 24 * time.Hour
	selfSignedRenewal  = 30 * 24 * time.Hour
)

// interfaceAddrs lists the machine's addresses. Tests replace it.
var interfaceAddrs = net.InterfaceAddrs

// TLSResult is what the server needs to listen with the resolved mode.
type TLSResult struct {
	TLSConfig   *tls.Config
	CertManager *autocert.Manager // ACME only
	HTTPHandler http.Handler      // ACME HTTP-01 challenges and redirect
	Mode        TLSMode
}

// SetupTLS resolves the TLS mode and loads or creates the certificate for it.
func SetupTLS(cfg *config.Config) (*TLSResult, error) {
	mode := resolveTLSMode(cfg)
	slog.Info("tls", "mode", mode, "host", cfg.Server.Host)

	switch mode {
	case TLSModeOff:
		return &TLSResult{Mode: TLSModeOff}, nil
	case TLSModeACME:
		return setupACME(cfg)
	case TLSModeSelfSigned:
		return setupSelfSigned(cfg)
	case TLSModeManual:
		return setupManual(cfg)
	}
	return nil, fmt.Errorf("unknown TLS mode: %s", mode)
}

// resolveTLSMode honours an explicit mode. In auto mode a loopback host runs
// plain HTTP, cert files mean manual, a hostname with an ACME email means
// ACME, and anything else (typically a LAN IP) gets a self-signed cert.
func resolveTLSMode(cfg *config.Config) TLSMode {
	switch mode := strings.ToLower(cfg.TLS.Mode); mode {
	case "off", "acme", "selfsigned", "manual":
		return TLSMode(mode)
	case "auto", "":
	default:
		slog.Warn("unknown TLS mode, using auto", "mode", mode)
	}

	host := cfg.Server.Host
	switch {
	case config.IsLocalhost(host):
		return TLSModeOff
	case cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "":
		return TLSModeManual
	case net.ParseIP(host) == nil && cfg.TLS.Email != "":
		return TLSModeACME
	default:
		return TLSModeSelfSigned
	}
}

func setupACME(cfg *config.Config) (*TLSResult, error) {
	host := cfg.Server.Host
	if cfg.TLS.Email == "" {
		return nil, errors.New("ACME mode requires TLS_EMAIL to be set")
	}
	if net.ParseIP(host) != nil {
		return nil, fmt.Errorf("ACME mode needs a DNS name, not the IP %s", host)
	}
	if cfg.Server.Port != 443 {
		slog.Warn("ACME mode listens on 443, configured port is ignored", "configured_port", cfg.Server.Port)
	}

	cacheDir := filepath.Join(cfg.TLS.CertDir, "acme")
	if err := os.MkdirAll(cacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create ACME cert directory: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.TLS.Email,
		Cache:      autocert.DirCache(cacheDir),
		HostPolicy: autocert.HostWhitelist(host),
	}
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	return &TLSResult{
		Mode:        TLSModeACME,
		TLSConfig:   tlsConfig,
		CertManager: manager,
		HTTPHandler: manager.HTTPHandler(nil),
	}, nil
}

// setupSelfSigned reuses the stored certificate while it is valid for another
// month and still names every address devices use to reach this host.
// Otherwise it issues a new one, which every device has to accept again.
func setupSelfSigned(cfg *config.Config) (*TLSResult, error) {
	dir := filepath.Join(cfg.TLS.CertDir, "selfsigned")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create self-signed cert directory: %w", err)
	}
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	dnsNames, ips := certNames(cfg.Server.Host)

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no self-signed certificate yet")
	case err != nil:
		slog.Warn("stored self-signed certificate unusable", "error", err)
	case !reusable(cert.Leaf, dnsNames, ips):
		slog.Info("stored self-signed certificate expiring or missing addresses", "want_ips", ips)
	default:
		slog.Info("using stored self-signed certificate")
		return selfSignedResult(&cert), nil
	}

	fresh, err := issueSelfSigned(cfg.Server.Host, dnsNames, ips, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	slog.Info("generated self-signed certificate", "ips", ips, "dns", dnsNames)
	return selfSignedResult(fresh), nil
}

func selfSignedResult(cert *tls.Certificate) *TLSResult {
	logCertFingerprint(cert)
	slog.Warn("self-signed certificate: every device must accept it before the first check-in")
	return &TLSResult{Mode: TLSModeSelfSigned, TLSConfig: serverTLSConfig(cert)}
}

// certNames returns the SANs a certificate for host needs. An unspecified
// host listens on all interfaces, so devices reach it by a LAN address.
func certNames(host string) ([]string, []net.IP) {
	var dnsNames []string
	var ips []net.IP
	switch ip := net.ParseIP(host); {
	case ip == nil:
		dnsNames = append(dnsNames, host)
	case ip.IsUnspecified():
		ips = lanAddresses()
	default:
		ips = append(ips, ip)
	}
	dnsNames = append(dnsNames, "localhost")
	ips = append(ips, net.IPv4(127, 0, 0, 1), net.IPv6loopback)
	return dnsNames, ips
}

// reusable reports whether leaf stays valid past the renewal window and
// covers every wanted name and address.
func reusable(leaf *x509.Certificate, dnsNames []string, ips []net.IP) bool {
	if leaf == nil || time.Until(leaf.NotAfter) < selfSignedRenewal {
		return false
	}
	for _, name := range dnsNames {
		if !slices.Contains(leaf.DNSNames, name) {
			return false
		}
	}
	for _, ip := range ips {
		if !slices.ContainsFunc(leaf.IPAddresses, ip.Equal) {
			return false
		}
	}
	return true
}

// issueSelfSigned creates an ECDSA P-256 certificate, stores it with its key
// and returns the loaded pair.
func issueSelfSigned(host string, dnsNames []string, ips []net.IP, certFile, keyFile string) (*tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Token Check-in"}, CommonName: host},
		NotBefore:             now,
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              dnsNames,
		IPAddresses:           ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private key: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der); err != nil {
		return nil, err
	}
	if err := writePEM(keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load generated cert: %w", err)
	}
	return &cert, nil
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func setupManual(cfg *config.Config) (*TLSResult, error) {
	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, errors.New("manual TLS mode requires both cert-file and key-file")
	}
	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}
	logCertFingerprint(&cert)
	return &TLSResult{Mode: TLSModeManual, TLSConfig: serverTLSConfig(&cert)}, nil
}

// lanAddresses returns the global unicast addresses of this machine.
func lanAddresses() []net.IP {
	addrs, err := interfaceAddrs()
	if err != nil {
		slog.Warn("failed to list interface addresses", "error", err)
		return nil
	}
	var ips []net.IP
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.IsGlobalUnicast() {
			ips = append(ips, ipNet.IP)
		}
	}
	return ips
}

// logCertFingerprint logs the SHA-256 fingerprint operators compare on devices.
func logCertFingerprint(cert *tls.Certificate) {
	if len(cert.Certificate) == 0 {
		return
	}
	sum := sha256.Sum256(cert.Certificate[0])
	slog.Info("certificate fingerprint", "sha256", strings.ReplaceAll(fmt.Sprintf("% X", sum[:]), " ", ":"))
}

func serverTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
}
