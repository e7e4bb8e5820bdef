package model

// EventTypePing is the only event type the simulation engine handles.
// Events carrying any other type are skipped by the runner without
// producing a result entry.
const EventTypePing = "ping"

// Event is an immutable request descriptor consumed exactly once by
// the runner. TimeoutMs bounds the simulated inter-packet pacing only;
// it never influences success or failure of the event.
type Event struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	SourceInterface string `json:"source_interface"`
	DestinationIP   string `json:"destination_ip"`
	Count           int    `json:"count"`
	TimeoutMs       int    `json:"timeout"`
}
