// Package journal keeps an audit trail of every light switch the autolight
// coordinators perform. Entries are never read back for state recovery.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/saaga0h/jeeves-autolight/internal/autolight"
)

// Entry is one recorded switch
type Entry struct {
	ID        uuid.UUID `json:"id"`
	AutoLight string    `json:"autolight"`
	Action    string    `json:"action"`
	Cause     string    `json:"cause"`
	Lights    []string  `json:"lights"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink stores journal entries
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Journal turns switch records into entries and fans them out to its sinks
type Journal struct {
	sinks []Sink
	newID func() uuid.UUID
}

// New creates a journal writing to every given sink
func New(sinks ...Sink) *Journal {
	return &Journal{
		sinks: sinks,
		newID: uuid.New,
	}
}

// Record implements autolight.Recorder. Every sink is attempted; their
// errors are joined.
func (j *Journal) Record(ctx context.Context, rec autolight.SwitchRecord) error {
	entry := Entry{
		ID:        j.newID(),
		AutoLight: rec.AutoLight,
		Action:    rec.Action,
		Cause:     rec.Cause,
		Lights:    append([]string(nil), rec.Lights...),
		Timestamp: rec.Timestamp.UTC(),
	}

	var errs []error
	for _, s := range j.sinks {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to record switch of %s: %w", rec.AutoLight, errors.Join(errs...))
	}
	return nil
}
