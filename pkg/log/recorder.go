package log

import "time"

// Recorder fills in the fields shared by every event one endpoint emits
// and forwards to a Logger. The zero value discards events.
type Recorder struct {
	Logger Logger
	Role   Role
	DSN    string
}

// Enabled reports whether events are forwarded anywhere.
func (r Recorder) Enabled() bool {
	return r.Logger != nil
}

// Log stamps and forwards an event.
func (r Recorder) Log(event Event) {
	if r.Logger == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.LocalRole = r.Role
	if event.DSN == "" {
		event.DSN = r.DSN
	}
	r.Logger.Log(event)
}

// State records a state change.
func (r Recorder) State(sessionID string, entity StateEntity, oldState, newState, reason string) {
	r.Log(Event{
		SessionID: sessionID,
		Layer:     LayerSession,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Control records a control exchange.
func (r Recorder) Control(sessionID string, dir Direction, remote string, ctl ControlEvent) {
	r.Log(Event{
		SessionID:  sessionID,
		Direction:  dir,
		Layer:      LayerHTTP,
		Category:   CategoryControl,
		RemoteAddr: remote,
		Control:    &ctl,
	})
}

// Message records an HTTP or envelope message.
func (r Recorder) Message(sessionID string, dir Direction, layer Layer, remote string, msg MessageEvent) {
	r.Log(Event{
		SessionID:  sessionID,
		Direction:  dir,
		Layer:      layer,
		Category:   CategoryMessage,
		RemoteAddr: remote,
		Message:    &msg,
	})
}

// Error records an error. A zero status is omitted.
func (r Recorder) Error(sessionID string, layer Layer, remote string, status int, context string, err error) {
	data := &ErrorEventData{Layer: layer, Context: context}
	if err != nil {
		data.Message = err.Error()
	}
	if status != 0 {
		data.Status = &status
	}
	r.Log(Event{
		SessionID:  sessionID,
		Layer:      layer,
		Category:   CategoryError,
		RemoteAddr: remote,
		Error:      data,
	})
}
