package session

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a dispense session.
// IN_PROGRESS is the only non-terminal state.
type Status string

const (
	StatusInProgress    Status = "IN_PROGRESS"
	StatusCompleted     Status = "COMPLETED"
	StatusEmergencyStop Status = "EMERGENCY_STOP"
)

// DefaultStopReason is recorded when an emergency stop arrives without one.
const DefaultStopReason = "Emergency stop pressed"

// TimestampLayout is how session timestamps are rendered in history output.
const TimestampLayout = "2006-01-02 15:04:05"

// Session is one dispense attempt from start to terminal outcome.
// The store owns identity and lifecycle; EndTime is zero while active and
// StopReason is set only for EMERGENCY_STOP.
type Session struct {
	ID               int64     `json:"id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time,omitzero"`
	TargetWaterML    float64   `json:"target_water_ml"`
	TargetSyrupML    float64   `json:"target_syrup_ml"`
	DispensedWaterML float64   `json:"dispensed_water_ml"`
	DispensedSyrupML float64   `json:"dispensed_syrup_ml"`
	Status           Status    `json:"status"`
	StopReason       string    `json:"stop_reason,omitempty"`
}

// Active reports whether the session has not reached a terminal state.
func (s Session) Active() bool { return s.Status == StatusInProgress }

// EventType classifies a rendered history entry.
type EventType string

const (
	EventDispense  EventType = "DISPENSE"
	EventEmergency EventType = "EMERGENCY"
	EventInfo      EventType = "INFO"
)

// Event is the history representation of a session as served to clients.
type Event struct {
	ID        int64     `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
}

// Event renders the session into its history entry. The message formats
// follow the appliance UI contract and must stay stable.
func (s Session) Event() Event {
	e := Event{
		ID:        s.ID,
		Timestamp: s.StartTime.Format(TimestampLayout),
	}
	switch s.Status {
	case StatusInProgress:
		e.Type = EventDispense
		e.Message = fmt.Sprintf("Dispensing in progress | Water: %g ml / %g ml, Syrup: %g ml / %g ml",
			s.DispensedWaterML, s.TargetWaterML, s.DispensedSyrupML, s.TargetSyrupML)
	case StatusCompleted:
		e.Type = EventDispense
		e.Message = fmt.Sprintf("Completed | Water: %g ml, Syrup: %g ml",
			s.TargetWaterML, s.TargetSyrupML)
	case StatusEmergencyStop:
		e.Type = EventEmergency
		e.Message = fmt.Sprintf("Emergency Stop | Dispensed Water: %g ml / %g ml, Syrup: %g ml / %g ml | Reason: %s",
			s.DispensedWaterML, s.TargetWaterML, s.DispensedSyrupML, s.TargetSyrupML, s.StopReason)
	default:
		e.Type = EventInfo
		e.Message = "Unknown status"
	}
	return e
}
