package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// dateOnly is the layout a browser date input posts.
const dateOnly = "2006-01-02"

// dueDate accepts either an RFC 3339 timestamp or a bare calendar date.
// A bare date is read as midnight UTC.
type dueDate struct {
	time.Time
}

func (d *dueDate) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.ParseInLocation(dateOnly, s, time.UTC)
	if err != nil {
		return fmt.Errorf("dueDate %q: want RFC 3339 or %s", s, dateOnly)
	}
	d.Time = t
	return nil
}

// ptr returns nil for an absent date.
func (d *dueDate) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
