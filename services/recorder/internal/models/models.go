package models

import (
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// Sample is one reading obtained by the recorder.
type Sample struct {
	Reading   reading.Reading
	Source    string
	FetchedAt time.Time
}

// LastLogged remembers the most recent reading appended to the log.
type LastLogged struct {
	Reading reading.Reading
	At      time.Time
}
