// Package integration carries the error taxonomy shared by the outbound
// integration clients (Kommo, Facebook, N8N). The delivery pipeline records
// every variant identically in the lead event's error_message and retries
// them uniformly on the next sweep; the distinction only matters to callers
// that want to surface the failure differently (e.g. audit detail).
package integration

import (
	"errors"
	"fmt"
)

// ConfigMissingError indicates a tenant has no (or empty) credentials
// configured for a service. Deliveries fail fast on it; direct API calls
// surface it to the caller instead of retrying.
type ConfigMissingError struct {
	Service  string
	TenantID string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("%s credentials not configured for company %s", e.Service, e.TenantID)
}

// NewConfigMissing builds a ConfigMissingError for a service/tenant pair.
func NewConfigMissing(service, tenantID string) error {
	return &ConfigMissingError{Service: service, TenantID: tenantID}
}

// IsConfigMissing reports whether err is (or wraps) a ConfigMissingError.
func IsConfigMissing(err error) bool {
	var cm *ConfigMissingError
	return errors.As(err, &cm)
}

// TransportError wraps a network-level failure (DNS, dial, timeout) of an
// outbound call that never produced an HTTP response.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteRejectedError carries a non-2xx response with the provider error
// body attached.
type RemoteRejectedError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Service, e.StatusCode, e.Body)
}

// MalformedResponseError indicates a success status whose body could not be
// parsed.
type MalformedResponseError struct {
	Service string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned unparseable response: %v", e.Service, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
