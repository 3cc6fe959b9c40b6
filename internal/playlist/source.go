package playlist

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindRehearsal Kind = iota
	KindScheduled
)

type Slot string

const (
	SlotMorning Slot = "morning"
	SlotEvening Slot = "evening"
)

const rehearsalSessionID = "rehearsal"

// Source identifies where a session's ordered item list comes from: the
// shared rehearsal list or one slot of a monthly schedule.
type Source struct {
	Kind      Kind
	MonthlyID string
	Slot      Slot
}

func Rehearsal() Source {
	return Source{Kind: KindRehearsal}
}

func Scheduled(monthlyID string, slot Slot) Source {
	return Source{Kind: KindScheduled, MonthlyID: monthlyID, Slot: slot}
}

// ParseSessionID decodes the wire form "rehearsal" or "<slot>_<monthlyId>".
func ParseSessionID(sessionID string) (Source, error) {
	if sessionID == rehearsalSessionID {
		return Rehearsal(), nil
	}

	slot, monthlyID, ok := strings.Cut(sessionID, "_")
	if !ok || monthlyID == "" {
		return Source{}, fmt.Errorf("%w: malformed session id %q", ErrUnresolvableSession, sessionID)
	}

	switch Slot(slot) {
	case SlotMorning, SlotEvening:
	default:
		return Source{}, fmt.Errorf("%w: unknown slot %q", ErrUnresolvableSession, slot)
	}

	return Scheduled(monthlyID, Slot(slot)), nil
}

func (s Source) SessionID() string {
	if s.Kind == KindRehearsal {
		return rehearsalSessionID
	}

	return string(s.Slot) + "_" + s.MonthlyID
}

// scope is the change notification key that affects this source's list.
func (s Source) scope() string {
	if s.Kind == KindRehearsal {
		return rehearsalSessionID
	}

	return s.MonthlyID
}
