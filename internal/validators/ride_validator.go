package validators

import (
	"fmt"
)

// RideLimits bounds what a single ride may be created with.
type RideLimits struct {
	MaxDistanceMeters  float64
	MaxDurationSeconds float64
}

type RideBoundsError struct {
	Field   string
	Message string
}

func (e *RideBoundsError) Error() string { return e.Message }

// ValidateRideBounds rejects rides longer than the configured limits. The
// messages are shown to passengers verbatim.
func ValidateRideBounds(distanceMeters, durationSeconds float64, limits RideLimits) *RideBoundsError {
	if distanceMeters > limits.MaxDistanceMeters {
		return &RideBoundsError{
			Field:   "distance",
			Message: fmt.Sprintf("ride distance too long, maximum allowed is %gkm", limits.MaxDistanceMeters/1000),
		}
	}
	if durationSeconds > limits.MaxDurationSeconds {
		return &RideBoundsError{
			Field:   "duration",
			Message: fmt.Sprintf("ride duration too long, maximum allowed is %g hours", limits.MaxDurationSeconds/3600),
		}
	}
	return nil
}

func ValidateCoordinates(lng, lat float64) error {
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}
