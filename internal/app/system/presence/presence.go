// Package presence answers whether a user's bound device is currently
// reachable. Discovery itself (Bluetooth scans, ARP tables) happens outside
// this service; the Oracle interface is the narrow seam to it.
package presence

import (
	"context"
	"errors"

	"github.com/dalemusser/stratawatch/internal/app/system/normalize"
)

// ErrUnavailable wraps every failure to obtain a presence answer.
// Callers treat it as "absent" for that query.
var ErrUnavailable = errors.New("presence oracle unavailable")

// Oracle reports whether a device is currently present.
type Oracle interface {
	IsPresent(ctx context.Context, deviceID string) (bool, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, deviceID string) (bool, error)

// IsPresent calls f.
func (f OracleFunc) IsPresent(ctx context.Context, deviceID string) (bool, error) {
	return f(ctx, deviceID)
}

// NormalizeDeviceID lowercases a MAC-style identifier and uses ':' as the
// octet separator, so "A4-55-90-55-CC-03" and "a4:55:90:55:cc:03" match.
func NormalizeDeviceID(id string) string {
	return normalize.DeviceID(id)
}
