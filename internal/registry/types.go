package registry

import (
	"fmt"
	"strings"
	"time"
)

// Status is the liveness state of a device.
type Status string

// Status values.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// MaxAddressLength caps the stored network address.
const MaxAddressLength = 255

// AllStatuses lists every valid status, in display order.
var AllStatuses = []Status{StatusOnline, StatusOffline}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// ParseStatus converts a wire value into a Status.
// The empty string yields StatusOnline, the default for a registration.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if status == "" {
		return StatusOnline, nil
	}
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
	}
	return status, nil
}

// DeviceRecord is the registry's view of one device.
type DeviceRecord struct {
	Identifier string    `json:"identifier"`
	Address    string    `json:"address"`
	Status     Status    `json:"status"`
	LastSeen   time.Time `json:"last_seen"`
}

// RegisterRequest is the input to Service.Register.
// An empty Status means online.
type RegisterRequest struct {
	Identifier string
	Address    string
	Status     Status
}

// checkIdentifier rejects an empty or all-whitespace identifier.
// Identifiers are opaque and stored exactly as given.
func checkIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}
	return nil
}

// normaliseAddress trims and checks a network address.
func normaliseAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("%w: address is required", ErrInvalidInput)
	}
	if len(address) > MaxAddressLength {
		return "", fmt.Errorf("%w: address exceeds %d bytes", ErrInvalidInput, MaxAddressLength)
	}
	return address, nil
}

// validateUpsert normalises the arguments shared by every Store.Upsert.
func validateUpsert(identifier, address string, status Status) (string, string, error) {
	if err := checkIdentifier(identifier); err != nil {
		return "", "", err
	}
	addr, err := normaliseAddress(address)
	if err != nil {
		return "", "", err
	}
	if !status.Valid() {
		return "", "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return identifier, addr, nil
}

// isStale reports whether an online record has outlived the timeout at now.
// Records without a lastSeen never go stale.
func isStale(rec DeviceRecord, now time.Time, offlineTimeout time.Duration) bool {
	if rec.Status != StatusOnline || rec.LastSeen.IsZero() {
		return false
	}
	return now.Sub(rec.LastSeen) > offlineTimeout
}
