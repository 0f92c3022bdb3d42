// Package status reads the machine status document written by remote agents.
// This side never writes it.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
	"github.com/telepult-io/telepult/internal/config"
	"github.com/telepult-io/telepult/internal/serializer"
	"github.com/telepult-io/telepult/internal/store"
)

// Band classifies how recently a machine reported in.
type Band string

const (
	BandOnline  Band = "online"   // seen within the online threshold
	BandRecent  Band = "recent"   // seen within the availability window
	BandOffline Band = "offline"  // outside the availability window
)

type Machine struct {
	MachineID  string
	Hostname   string
	LastSeen   time.Time
	IP         string
	CPUPercent float64
	MemPercent float64
}

type Reader struct {
	store store.Store
	name  string

	now func() time.Time
}

func NewReader(s store.Store) *Reader {
	return &Reader{store: s, name: config.StatusDocument, now: time.Now}
}

// Availability pairs a machine with its band.
type Availability struct {
	Machine Machine
	Band    Band
}

// ListAvailable returns the machines seen within the availability window.
// Order follows the document. A missing status document means no machines,
// not an error.
func (r *Reader) ListAvailable(ctx context.Context) ([]Machine, error) {
	avail, err := r.Availability(ctx)
	if err != nil {
		return nil, err
	}

	machines := make([]Machine, 0, len(avail))
	for _, a := range avail {
		machines = append(machines, a.Machine)
	}
	return machines, nil
}

// Availability returns the available machines with their bands. Offline
// machines are excluded entirely.
func (r *Reader) Availability(ctx context.Context) ([]Availability, error) {
	machines, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	avail := make([]Availability, 0, len(machines))
	for _, m := range machines {
		if band := Classify(m, now); band != BandOffline {
			avail = append(avail, Availability{Machine: m, Band: band})
		}
	}
	return avail, nil
}

// load normalizes the document: agents write either a single status object or
// an array of them, and field types vary between agent implementations.
func (r *Reader) load(ctx context.Context) ([]Machine, error) {
	data, _, err := r.store.Load(ctx, r.name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var raw any
	if err := serializer.JSON.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode status document: %w", err)
	}

	var entries []any
	switch v := raw.(type) {
	case []any:
		entries = v
	case map[string]any:
		entries = []any{v}
	default:
		return nil, fmt.Errorf("unexpected status document shape %T", raw)
	}

	machines := make([]Machine, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		machines = append(machines, Machine{
			MachineID:  cast.ToString(fields["machine_id"]),
			Hostname:   cast.ToString(fields["hostname"]),
			LastSeen:   parseLastSeen(fields["last_seen"]),
			IP:         cast.ToString(fields["ip"]),
			CPUPercent: cast.ToFloat64(fields["cpu"]),
			MemPercent: cast.ToFloat64(fields["mem"]),
		})
	}
	return machines, nil
}

// Classify places a machine in an availability band relative to now.
func Classify(m Machine, now time.Time) Band {
	age := now.Sub(m.LastSeen)
	switch {
	case age < config.OnlineThreshold:
		return BandOnline
	case age < config.AvailabilityWindow:
		return BandRecent
	default:
		return BandOffline
	}
}

// parseLastSeen accepts the timestamp shapes agents actually write: RFC3339
// strings, zone-less ISO strings and unix second counts.
func parseLastSeen(v any) time.Time {
	if ts, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
		// python isoformat() omits the zone; treat it as UTC
		if t, err := time.Parse("2006-01-02T15:04:05.999999999", ts); err == nil {
			return t.UTC()
		}
	}
	if secs := cast.ToInt64(v); secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Time{}
}
