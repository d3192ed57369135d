package charts

import (
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/history"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// Series colors shared by the distribution and scatter projections.
const (
	ColorOccupied  = "#ef4444"
	ColorReserved  = "#6b7280"
	ColorAvailable = "#22c55e"
)

// TimeLabelLayout formats the x-axis label of time series points.
const TimeLabelLayout = "15:04:05"

// Counts summarises seat statuses over a window.
type Counts struct {
	Occupied  int `json:"occupied"`
	Reserved  int `json:"reserved"`
	Available int `json:"available"`
}

// TimelinePoint is one step of the seat status timeline.
type TimelinePoint struct {
	Time        string             `json:"time"`
	TimeMs      int64              `json:"timeMs"`
	SeatNumeric int                `json:"seatNumeric"`
	SeatStatus  reading.SeatStatus `json:"seatStatus"`
}

// SeriesPoint is one sample of a numeric time series.
type SeriesPoint struct {
	Time   string  `json:"time"`
	TimeMs int64   `json:"timeMs"`
	Value  float64 `json:"value"`
}

// Slice is one wedge of the status distribution.
type Slice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

// ScatterPoint plots pressure against distance, sized by the light reading.
type ScatterPoint struct {
	Pressure    int     `json:"pressure"`
	Distance    float64 `json:"distance"`
	LightAnalog int     `json:"ldrAO"`
}

// ScatterGroup is the set of points sharing one seat status.
type ScatterGroup struct {
	Name   string             `json:"name"`
	Status reading.SeatStatus `json:"status"`
	Color  string             `json:"color"`
	Points []ScatterPoint     `json:"points"`
}

// Charts bundles every projection of a history window.
type Charts struct {
	WindowMinutes int             `json:"windowMinutes"`
	Points        int             `json:"points"`
	Counts        Counts          `json:"counts"`
	Timeline      []TimelinePoint `json:"timeline"`
	Pressure      []SeriesPoint   `json:"pressure"`
	Distance      []SeriesPoint   `json:"distance"`
	Distribution  []Slice         `json:"distribution"`
	Scatter       []ScatterGroup  `json:"scatter"`
}

// Build projects w into chart-ready series. Labels are rendered in loc
// (time.Local when nil).
func Build(w history.Window, loc *time.Location) Charts {
	counts := StatusCounts(w.Rows)
	return Charts{
		WindowMinutes: w.WindowMinutes,
		Points:        len(w.Rows),
		Counts:        counts,
		Timeline:      TimelineSeries(w.Rows, loc),
		Pressure:      PressureSeries(w.Rows, loc),
		Distance:      DistanceSeries(w.Rows, loc),
		Distribution:  Distribution(counts),
		Scatter:       ScatterGroups(w.Rows),
	}
}

// StatusCounts counts occupied and reserved rows; every other row counts as
// available, so UNKNOWN statuses still sum to a sane total.
func StatusCounts(rows []reading.Reading) Counts {
	var c Counts
	for _, r := range rows {
		switch r.SeatStatus {
		case reading.SeatOccupied:
			c.Occupied++
		case reading.SeatReserved:
			c.Reserved++
		}
	}
	c.Available = max(0, len(rows)-c.Occupied-c.Reserved)
	return c
}

// TimeLabel renders ms as a wall-clock label in loc.
func TimeLabel(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(TimeLabelLayout)
}

// TimelineSeries emits one point per row with the numeric seat status.
func TimelineSeries(rows []reading.Reading, loc *time.Location) []TimelinePoint {
	out := make([]TimelinePoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, TimelinePoint{
			Time:        TimeLabel(r.UpdatedAtMs, loc),
			TimeMs:      r.UpdatedAtMs,
			SeatNumeric: r.SeatNumeric(),
			SeatStatus:  r.SeatStatus,
		})
	}
	return out
}

// PressureSeries emits the FSR value of every row.
func PressureSeries(rows []reading.Reading, loc *time.Location) []SeriesPoint {
	return series(rows, loc, func(r reading.Reading) float64 { return float64(r.PressureRaw) })
}

// DistanceSeries emits the ultrasonic distance of every row.
func DistanceSeries(rows []reading.Reading, loc *time.Location) []SeriesPoint {
	return series(rows, loc, func(r reading.Reading) float64 { return r.DistanceCm })
}

func series(rows []reading.Reading, loc *time.Location, value func(reading.Reading) float64) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(rows))
	for _, r := range rows {
		out = append(out, SeriesPoint{
			Time:   TimeLabel(r.UpdatedAtMs, loc),
			TimeMs: r.UpdatedAtMs,
			Value:  value(r),
		})
	}
	return out
}

// Distribution renders counts as the three-slice donut.
func Distribution(c Counts) []Slice {
	return []Slice{
		{Name: "Occupied", Value: c.Occupied, Color: ColorOccupied},
		{Name: "Reserved", Value: c.Reserved, Color: ColorReserved},
		{Name: "Available", Value: c.Available, Color: ColorAvailable},
	}
}

// ScatterGroups partitions rows into exactly three groups by seat status.
// Rows whose status is not OCCUPIED, RESERVED or AVAILABLE are left out of
// this projection on purpose; they still count in StatusCounts.
func ScatterGroups(rows []reading.Reading) []ScatterGroup {
	groups := []ScatterGroup{
		{Name: "Occupied", Status: reading.SeatOccupied, Color: ColorOccupied, Points: []ScatterPoint{}},
		{Name: "Reserved", Status: reading.SeatReserved, Color: ColorReserved, Points: []ScatterPoint{}},
		{Name: "Available", Status: reading.SeatAvailable, Color: ColorAvailable, Points: []ScatterPoint{}},
	}

	for _, r := range rows {
		for i := range groups {
			if groups[i].Status != r.SeatStatus {
				continue
			}
			groups[i].Points = append(groups[i].Points, ScatterPoint{
				Pressure:    r.PressureRaw,
				Distance:    r.DistanceCm,
				LightAnalog: r.LightAnalog,
			})
			break
		}
	}
	return groups
}
