package node

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/02loveslollipop/Smart-study-space-monitor/internal/reading"
)

// maxRecordSize bounds the node response body.
const maxRecordSize = 64 << 10

// FetchReading retrieves the node's current record and normalizes it. A
// record without a timestamp is stamped with retrieved.
func FetchReading(ctx context.Context, client *http.Client, url string, retrieved time.Time) (reading.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return reading.Reading{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return reading.Reading{}, fmt.Errorf("request node record: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return reading.Reading{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordSize))
	if err != nil {
		return reading.Reading{}, fmt.Errorf("read node record: %w", err)
	}
	raw, err := reading.DecodeRaw(body)
	if err != nil {
		return reading.Reading{}, err
	}
	if raw == nil {
		return reading.Reading{}, fmt.Errorf("node returned an empty record")
	}

	r := reading.Normalize(raw)
	if r.UpdatedAtMs == 0 {
		r.UpdatedAtMs = retrieved.UnixMilli()
	}
	return r, nil
}
