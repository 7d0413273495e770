package tls

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/acme/autocert"

	"payshield-service/internal/config"
	"payshield-service/internal/util"
)

// TLSManager picks the serving certificate: ACME first, then the configured
// key pair, then a self-signed development certificate.
type TLSManager struct {
	server      config.ServerConfig
	environment string
	autoCert    *autocert.Manager
}

func NewTLSManager(server config.ServerConfig, environment string) *TLSManager {
	m := &TLSManager{server: server, environment: environment}
	if server.AutoCert && server.EnableTLS {
		m.setupAutoCert()
	}
	return m
}

func (m *TLSManager) setupAutoCert() {
	if err := os.MkdirAll(m.server.AutoCertDir, 0700); err != nil {
		util.Warn("Could not create autocert directory", util.ErrorField(err))
		return
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.server.Domain),
		Cache:      autocert.DirCache(m.server.AutoCertDir),
		Email:      m.server.Email,
	}

	util.Info("AutoCert configured",
		util.String("domain", m.server.Domain),
		util.String("cache_dir", m.server.AutoCertDir))
}

func (m *TLSManager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		if cert, err := m.autoCert.GetCertificate(hello); err == nil {
			return cert, nil
		}
	}

	if m.server.CertFile != "" && m.server.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(m.server.CertFile, m.server.KeyFile)
		if err == nil {
			return &cert, nil
		}
		util.Warn("Failed to load configured certificate", util.ErrorField(err))
	}

	// Never hand out a self-signed certificate in production.
	if m.environment == "production" {
		return nil, fmt.Errorf("no certificate available for %q", hello.ServerName)
	}
	return m.generateSelfSignedCert()
}

func (m *TLSManager) generateSelfSignedCert() (*tls.Certificate, error) {
	hosts := []string{m.server.Domain, "localhost", "127.0.0.1", "::1"}

	cert, err := NewDevCertGenerator(m.server.AutoCertDir).GenerateCert(hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	return &cert, nil
}

func (m *TLSManager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}
}

func (m *TLSManager) GetAutocertManager() *autocert.Manager {
	return m.autoCert
}
