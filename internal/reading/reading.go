package reading

import "time"

// SeatStatus is the occupancy state reported by the node.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatOccupied  SeatStatus = "OCCUPIED"
	SeatUnknown   SeatStatus = "UNKNOWN"
)

// LightStatus is the lighting state derived from the LDR digital output.
type LightStatus string

const (
	LightBright  LightStatus = "BRIGHT"
	LightLow     LightStatus = "LOW_LIGHT"
	LightUnknown LightStatus = "UNKNOWN"
)

// Wire field names written by the node.
const (
	FieldSeatStatus   = "seatStatus"
	FieldLightStatus  = "lightStatus"
	FieldDistance     = "distance_cm"
	FieldPressure     = "fsrValue"
	FieldLightAnalog  = "ldrAO"
	FieldLightDigital = "ldrDO"
	FieldUpdatedAt    = "updatedAt"
)

// Reading is one snapshot of the monitored seat.
type Reading struct {
	SeatStatus   SeatStatus  `json:"seatStatus"`
	LightStatus  LightStatus `json:"lightStatus"`
	DistanceCm   float64     `json:"distanceCm"`
	PressureRaw  int         `json:"pressureRaw"`
	LightAnalog  int         `json:"lightAnalog"`
	LightDigital int         `json:"lightDigital"`
	UpdatedAtMs  int64       `json:"updatedAtMs"`
	Key          string      `json:"key,omitempty"`
}

// Entry is a raw log record as retrieved from the external store.
type Entry struct {
	Key string
	Raw map[string]any
}

// UpdatedAt returns the reading timestamp, or the zero time when unknown.
func (r Reading) UpdatedAt() time.Time {
	if r.UpdatedAtMs <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(r.UpdatedAtMs)
}

// SeatNumeric maps the seat status onto the timeline axis.
// AVAILABLE=0, RESERVED=1, OCCUPIED=2; anything else plots as 0.
func (r Reading) SeatNumeric() int {
	switch r.SeatStatus {
	case SeatOccupied:
		return 2
	case SeatReserved:
		return 1
	default:
		return 0
	}
}

// Payload renders the reading with the node's wire field names.
func (r Reading) Payload() map[string]any {
	light := string(r.LightStatus)
	if r.LightStatus == LightLow {
		// the node writes the human label
		light = "LOW LIGHT"
	}
	return map[string]any{
		FieldSeatStatus:   string(r.SeatStatus),
		FieldLightStatus:  light,
		FieldDistance:     r.DistanceCm,
		FieldPressure:     r.PressureRaw,
		FieldLightAnalog:  r.LightAnalog,
		FieldLightDigital: r.LightDigital,
		FieldUpdatedAt:    r.UpdatedAtMs,
	}
}

// Known reports whether the seat status is one of the three defined states.
func (s SeatStatus) Known() bool {
	return s == SeatAvailable || s == SeatReserved || s == SeatOccupied
}
