package mailer

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/mimi-dispatch/internal/domain"
)

// Markers the provider replaces with its tracking and unsubscribe pixel.
const (
	PeekImageMarker      = "[[peek_image]]"
	TrackingBeaconMarker = "[[tracking_beacon]]"
)

// ValidateBeacon rejects templated HTML that carries no web beacon.
func ValidateBeacon(content string) error {
	if strings.Contains(content, PeekImageMarker) || strings.Contains(content, TrackingBeaconMarker) {
		return nil
	}
	return fmt.Errorf("%w: you must include a web beacon in your Mimi email: %s", domain.ErrValidation, PeekImageMarker)
}
