package model

import "time"

// Status is the overall outcome of one simulated event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ActionPing is the action label stamped on every ping result.
const ActionPing = "ping"

// EchoPacket is the L2/L3 header view of one ICMP echo leg.
type EchoPacket struct {
	SrcMAC  string `json:"src_mac"`
	DestMAC string `json:"dest_mac"`
	SrcIP   string `json:"src_ip"`
	DestIP  string `json:"dest_ip"`
	TTL     int    `json:"ttl"`
}

// ICMPPacket records one request/reply exchange. RTTMs is nil and
// EchoReply absent when the packet was lost.
type ICMPPacket struct {
	Sequence    int         `json:"sequence"`
	Success     bool        `json:"success"`
	RTTMs       *float64    `json:"rtt"`
	EchoRequest EchoPacket  `json:"echo_request"`
	EchoReply   *EchoPacket `json:"echo_reply,omitempty"`
}

// RTTStats aggregates round-trip times over the successful packets of
// one event, in milliseconds.
type RTTStats struct {
	MinMs float64 `json:"min"`
	MaxMs float64 `json:"max"`
	AvgMs float64 `json:"avg"`
}

// PingDetails is the success-side payload of a PingResult.
// RoundTripTimeMs is nil when no packet came back; PathTaken is empty
// when no route exists, which by itself never fails the event.
type PingDetails struct {
	Source          string       `json:"source"`
	DestinationIP   string       `json:"destination_ip"`
	PacketsSent     int          `json:"packets_sent"`
	PacketsReceived int          `json:"packets_received"`
	LossPercentage  float64      `json:"loss_percentage"`
	RoundTripTimeMs *RTTStats    `json:"round_trip_time_ms"`
	ICMPPackets     []ICMPPacket `json:"icmp_packets"`
	PathTaken       []string     `json:"path_taken"`
}

// PingResult is the engine's sole externally visible artifact: one
// record per simulated event. Failed results carry Error instead of
// Details.
type PingResult struct {
	EventID   string       `json:"event_id"`
	Status    Status       `json:"status"`
	Action    string       `json:"action"`
	Details   *PingDetails `json:"details,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Failed reports whether the result records a per-event failure.
func (r *PingResult) Failed() bool { return r.Status == StatusFailed }
