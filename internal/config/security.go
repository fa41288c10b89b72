package config

import (
	"fmt"
	"strings"
)

// SecurityConfig controls TLS on the service's listeners. Certificates come
// either from a SPIRE workload API socket or from static files.
type SecurityConfig struct {
	TLSEnabled bool   `mapstructure:"tls_enabled" json:"tls_enabled"`
	Mode       string `mapstructure:"mode" json:"mode"` // "spiffe" or "static"

	// SPIFFE settings, used when Mode is "spiffe".
	SPIFFESocketPath string   `mapstructure:"spiffe_socket_path" json:"spiffe_socket_path"`
	TrustDomain      string   `mapstructure:"trust_domain" json:"trust_domain"`
	ServiceID        string   `mapstructure:"service_id" json:"service_id"`
	AuthorizedIDs    []string `mapstructure:"authorized_ids" json:"authorized_ids"`

	// Static certificate files, used when Mode is "static".
	CertFile string `mapstructure:"cert_file" json:"cert_file"`
	KeyFile  string `mapstructure:"key_file" json:"key_file"`
	CAFile   string `mapstructure:"ca_file" json:"ca_file"`
}

// Validate checks the settings of the active mode.
func (s *SecurityConfig) Validate() error {
	if !s.TLSEnabled {
		return nil
	}

	switch s.Mode {
	case "", "spiffe":
		if s.SPIFFESocketPath == "" {
			return fmt.Errorf("spiffe_socket_path is required when mode is spiffe")
		}
		if s.ServiceID != "" && !strings.HasPrefix(s.ServiceID, "spiffe://") {
			return fmt.Errorf("service_id must be a SPIFFE ID starting with spiffe://")
		}
		if s.ServiceID != "" && s.TrustDomain != "" && !strings.Contains(s.ServiceID, s.TrustDomain) {
			return fmt.Errorf("service_id must belong to trust_domain %s", s.TrustDomain)
		}
	case "static":
		if s.CertFile == "" || s.KeyFile == "" {
			return fmt.Errorf("cert_file and key_file are required when mode is static")
		}
	default:
		return fmt.Errorf("unsupported security mode: %s", s.Mode)
	}
	return nil
}

// IsSPIFFE reports whether SPIFFE-sourced TLS is active.
func (s *SecurityConfig) IsSPIFFE() bool {
	return s.TLSEnabled && (s.Mode == "" || s.Mode == "spiffe")
}

// IsStaticTLS reports whether file-based TLS is active.
func (s *SecurityConfig) IsStaticTLS() bool {
	return s.TLSEnabled && s.Mode == "static"
}
