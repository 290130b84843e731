// Package feed streams live run state to observer clients over a
// WebSocket and accepts a small set of run-control commands back.
//
// The protocol is JSON text messages over a single socket per client.
// A client opens the socket, sends a SUBSCRIBE, and receives a WELCOME
// describing the static world followed by FRAME messages. Clients may
// send COMMAND messages at any time to pause, resume, or single-step
// the run; commands are queued and applied by the owning loop between
// ticks.
package feed

// Version identifies the feed protocol. Clients advertising a
// different version are rejected during the handshake.
const Version = "1.0"

// Message type tags.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeFrame     = "FRAME"
	TypeCommand   = "COMMAND"
)

// Command names accepted in a CommandMsg.
const (
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdStep   = "step"
)

// SubscribeMsg is the first message a client sends after connecting.
// It may be re-sent on an open socket to adjust the frame stride.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// EveryTick delivers only frames whose tick is a multiple of the
	// given stride. Zero or one means every frame.
	EveryTick int `json:"every_tick,omitempty"`
}

// WelcomeMsg acknowledges a subscription and carries the static world
// layout so clients can draw without a separate bootstrap call.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	Seed            int64          `json:"seed"`
	Timestep        float64        `json:"timestep"`
	WorldWidth      float64        `json:"world_width"`
	WorldHeight     float64        `json:"world_height"`
	Waypoints       []WaypointInfo `json:"waypoints"`
	Obstacles       []ObstacleInfo `json:"obstacles"`
}

// WaypointInfo describes one waypoint in the WELCOME payload.
type WaypointInfo struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Kind   string  `json:"kind"`
}

// ObstacleInfo describes one wall segment in the WELCOME payload.
type ObstacleInfo struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// FrameMsg carries the dynamic state of every agent for one tick.
type FrameMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            int64        `json:"tick"`
	Time            float64      `json:"time"`
	Paused          bool         `json:"paused"`
	Agents          []AgentFrame `json:"agents"`
}

// AgentFrame is one agent's pose and behavior state within a FrameMsg.
type AgentFrame struct {
	Serial int32   `json:"serial"`
	Type   string  `json:"type"`
	State  string  `json:"state"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	VX     float64 `json:"vx"`
	VY     float64 `json:"vy"`
	Dir    float64 `json:"dir"`
}

// CommandMsg is a run-control request from a client.
type CommandMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Command         string `json:"command"`
}

type envelope struct {
	Type string `json:"type"`
}
