package events

import (
	"github.com/MRamiBalles/hintserver/internal/hint"
)

// DiagnosticPayload is the payload of events raised from scheduler
// diagnostics.
type DiagnosticPayload struct {
	ElementID string `json:"element_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Size      int    `json:"size,omitempty"`
}

var diagnosticTypes = map[hint.DiagnosticKind]EventType{
	hint.DiagOverflow: EventTypeOverflow,
	hint.DiagFault:    EventTypeElementFault,
	hint.DiagStale:    EventTypeStaleElement,
	hint.DiagDump:     EventTypeDebugDump,
}

// Report implements hint.Reporter.
func (el *EventLog) Report(d hint.Diagnostic) {
	t, ok := diagnosticTypes[d.Kind]
	if !ok {
		t = EventType(d.Kind)
	}
	actor := d.Element
	if actor == "" {
		actor = ActorSystem
	}
	el.Append(HintEvent{
		Type:     t,
		ActorID:  actor,
		TargetID: d.PlayerID,
		Frame:    d.Frame,
		Payload: DiagnosticPayload{
			ElementID: d.ElementID,
			Detail:    d.Detail,
			Size:      d.Size,
		},
	})
}
