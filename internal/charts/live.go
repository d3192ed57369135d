package charts

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/live"
	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// Card header colors of the live view.
const (
	HeaderOccupied  = "red"
	HeaderReserved  = "gray"
	HeaderAvailable = "green"
	HeaderLowLight  = "yellow"
	HeaderBright    = "blue"
)

// LiveCard is the live-view projection of the current reading.
type LiveCard struct {
	Available        bool                `json:"available"`
	Online           bool                `json:"online"`
	SeatStatus       reading.SeatStatus  `json:"seatStatus"`
	LightStatus      reading.LightStatus `json:"lightStatus"`
	SeatColor        string              `json:"seatColor"`
	LightColor       string              `json:"lightColor"`
	PressureRaw      int                 `json:"pressureRaw"`
	DistanceCm       float64             `json:"distanceCm"`
	LightAnalog      int                 `json:"lightAnalog"`
	LightDigital     int                 `json:"lightDigital"`
	SecondsSince     int64               `json:"secondsSinceUpdate"`
	UpdatedAgo       string              `json:"updatedAgo"`
	UpdatedAt        string              `json:"updatedAt,omitempty"`
	LightExplanation string              `json:"lightExplanation"`
}

// NewLiveCard projects st at now. A missing reading yields a card with
// Available false so the shell can render its "waiting for readings" state.
func NewLiveCard(st live.State, now time.Time, loc *time.Location) LiveCard {
	card := LiveCard{
		Online:           st.Online,
		SeatStatus:       reading.SeatUnknown,
		LightStatus:      reading.LightUnknown,
		SeatColor:        HeaderAvailable,
		LightColor:       HeaderBright,
		UpdatedAgo:       "-",
		LightExplanation: "LOW LIGHT: DO = 1, BRIGHT: DO = 0",
	}
	if st.Reading == nil {
		return card
	}
	if loc == nil {
		loc = time.Local
	}

	r := *st.Reading
	card.Available = true
	card.SeatStatus = r.SeatStatus
	card.LightStatus = r.LightStatus
	card.PressureRaw = r.PressureRaw
	card.DistanceCm = r.DistanceCm
	card.LightAnalog = r.LightAnalog
	card.LightDigital = r.LightDigital

	switch r.SeatStatus {
	case reading.SeatOccupied:
		card.SeatColor = HeaderOccupied
	case reading.SeatReserved:
		card.SeatColor = HeaderReserved
	}
	if r.LightStatus == reading.LightLow {
		card.LightColor = HeaderLowLight
	}

	if at := r.UpdatedAt(); !at.IsZero() {
		card.SecondsSince = max(0, int64(now.Sub(at)/time.Second))
		card.UpdatedAgo = humanize.RelTime(at, now, "ago", "from now")
		card.UpdatedAt = at.In(loc).Format(time.DateTime)
	}
	return card
}
