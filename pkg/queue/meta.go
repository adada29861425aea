package queue

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

const metaRune = "|"

// Meta describes one trigger.
type Meta struct {
	ID    string
	Kind  string
	JobID string

	// At is when the trigger was asked to fire
	At time.Time
}

// Late returns how far past its fire time the trigger is.
func (m *Meta) Late(now time.Time) time.Duration {
	if now.Before(m.At) {
		return 0
	}
	return now.Sub(m.At)
}

func encodeMeta(m *Meta) []byte {
	return bytes.Join([][]byte{
		[]byte(m.Kind),
		[]byte(m.JobID),
		[]byte(strconv.FormatInt(m.At.UnixNano(), 10)),
	}, []byte(metaRune))
}

func decodeMeta(id string, payload []byte) (*Meta, error) {
	parts := bytes.Split(bytes.TrimSpace(payload), []byte(metaRune))
	if len(parts) != 3 || len(parts[1]) == 0 {
		return nil, fmt.Errorf("malformed trigger payload %q", payload)
	}
	at, err := strconv.ParseInt(string(parts[2]), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed trigger time %q: %w", parts[2], err)
	}
	return &Meta{ID: id, Kind: string(parts[0]), JobID: string(parts[1]), At: time.Unix(0, at)}, nil
}
