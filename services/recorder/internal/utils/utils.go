package utils

import (
	"fmt"
	"math"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
	"github.com/02loveslollipop/Smart-study-space-monitor/services/recorder/internal/models"
)

// DistanceEpsilon is the ultrasonic jitter treated as no change, in cm.
const DistanceEpsilon = 2.0

// ShouldLog reports whether sample should be appended to the reading log.
// The first sample is always logged; later ones are logged once minInterval
// has elapsed or when the reading changed.
func ShouldLog(sample models.Sample, last *models.LastLogged, minInterval time.Duration) bool {
	if last == nil {
		return true
	}
	if sample.FetchedAt.Sub(last.At) >= minInterval {
		return true
	}
	return !ReadingsEqual(last.Reading, sample.Reading)
}

// ReadingsEqual compares two readings ignoring key and timestamp. Analog
// values are compared through their derived statuses so sensor noise does
// not count as a change.
func ReadingsEqual(a, b reading.Reading) bool {
	return a.SeatStatus == b.SeatStatus &&
		a.LightStatus == b.LightStatus &&
		a.LightDigital == b.LightDigital &&
		ValuesEqual(a.DistanceCm, b.DistanceCm, DistanceEpsilon)
}

// ValuesEqual compares two floats with tolerance.
func ValuesEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Describe prints a reading for logging.
func Describe(r reading.Reading) string {
	return fmt.Sprintf("seat=%s light=%s distance=%.1fcm fsr=%d ldr=%d/%d",
		r.SeatStatus, r.LightStatus, r.DistanceCm, r.PressureRaw, r.LightAnalog, r.LightDigital)
}
