// Package sensor ingests hardware occupancy reports and applies them to
// slots.  Reports arrive over HTTP, MQTT or SQS and share one payload
// format:
//
//	{"slot_id": 3, "is_occupied": true}
//
// On MQTT the slot id may instead come from the topic, e.g.
// parking/slots/3/occupancy.
package sensor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/parking-slot-reservation/internal/slot"
)

// Report is one occupancy reading.
type Report struct {
	SlotID   int
	Occupied bool
}

type payload struct {
	SlotID     *int  `json:"slot_id"`
	IsOccupied *bool `json:"is_occupied"`
}

// ParseReport decodes a report.  fallbackID is used when the payload has no
// slot_id (0 means none).  Every failure wraps slot.ErrValidation.
func ParseReport(body []byte, fallbackID int) (Report, error) {
	var p payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Report{}, fmt.Errorf("%w: malformed occupancy report: %v", slot.ErrValidation, err)
	}
	if p.IsOccupied == nil {
		return Report{}, fmt.Errorf("%w: is_occupied must be a boolean", slot.ErrValidation)
	}
	id := fallbackID
	if p.SlotID != nil {
		id = *p.SlotID
	}
	if id <= 0 {
		return Report{}, fmt.Errorf("%w: slot_id must be a positive integer", slot.ErrValidation)
	}
	return Report{SlotID: id, Occupied: *p.IsOccupied}, nil
}

// SlotIDFromTopic extracts the slot id matched by the single-level wildcard
// in pattern.  It returns 0 when the topic does not match or the segment is
// not a number.
func SlotIDFromTopic(pattern, topic string) int {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")
	id := 0
	for i, p := range ps {
		if p == "#" {
			return id
		}
		if i >= len(ts) {
			return 0
		}
		switch p {
		case "+":
			if id != 0 {
				continue
			}
			n, err := strconv.Atoi(ts[i])
			if err != nil || n <= 0 {
				return 0
			}
			id = n
		default:
			if p != ts[i] {
				return 0
			}
		}
	}
	if len(ts) != len(ps) {
		return 0
	}
	return id
}

// Reporter applies a reading.  *slot.Manager implements it.
type Reporter interface {
	ReportOccupancy(ctx context.Context, id int, occupied bool) (slot.Slot, error)
}

// Permanent reports whether err will not go away on redelivery, so the
// message should be dropped rather than retried.
func Permanent(err error) bool {
	return errors.Is(err, slot.ErrValidation) ||
		errors.Is(err, slot.ErrNotFound) ||
		errors.Is(err, slot.ErrForbidden)
}
