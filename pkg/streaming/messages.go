// Package streaming defines the messages exchanged with live map clients.
package streaming

import (
	"github.com/morea-atlas/campaign-player/pkg/core"
)

// Message type constants of the streaming protocol.
const (
	TypeCampaignLoaded = "campaign_loaded"
	TypeMarkerAdd      = "marker_add"
	TypeMarkerMove     = "marker_move"
	TypeMarkerRemove   = "marker_remove"
	TypeCamera         = "camera"
	TypeTimeUpdate     = "time_update"
	TypeEvent          = "event"
	TypeSnapshot       = "snapshot"

	// client to server
	TypeCommand = "command"
	// server reply to a command
	TypeAck = "ack"
)

// Envelope wraps every message on the wire.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// CommandEnvelope is the decoding target for client messages.
type CommandEnvelope struct {
	Type    string         `json:"type"`
	Payload CommandPayload `json:"payload"`
}

// CommandPayload asks the player to run a command, e.g. ":SEEK:" ["42"].
type CommandPayload struct {
	ID      string   `json:"id,omitempty"` // echoed in the ack
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// AckPayload answers a command.
type AckPayload struct {
	For    string `json:"for"`
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CampaignLoadedPayload announces a newly active campaign together with the
// routes its clips reference.
type CampaignLoadedPayload struct {
	Campaign *core.Campaign `json:"campaign"`
	Routes   []core.Route   `json:"routes"`
}

// MarkerMovePayload repositions a marker.
type MarkerMovePayload struct {
	ID       string          `json:"id"`
	Position core.Position2D `json:"position"`
}

// MarkerRemovePayload deletes a marker.
type MarkerRemovePayload struct {
	ID string `json:"id"`
}

// Camera move kinds.
const (
	CameraEase = "ease"
	CameraFly  = "fly"
	CameraFit  = "fit"
)

// CameraPayload is one camera move. Bounds and Padding are set for fit.
type CameraPayload struct {
	Kind       string           `json:"kind"`
	Target     core.CameraState `json:"target"`
	DurationMs int64            `json:"durationMs"`
	Bounds     *core.Bounds     `json:"bounds,omitempty"`
	Padding    float64          `json:"padding,omitempty"`
}

// TimeUpdatePayload is sent after every recompute pass. Lead is the fog of
// war focus.
type TimeUpdatePayload struct {
	Time    float64          `json:"time"`
	MaxTime float64          `json:"maxTime"`
	Speed   float64          `json:"speed"`
	Playing bool             `json:"playing"`
	Label   string           `json:"label"`
	Lead    *core.Position2D `json:"lead,omitempty"`
}

// SnapshotPayload brings a newly connected client up to date.
type SnapshotPayload struct {
	Campaign *core.Campaign    `json:"campaign,omitempty"`
	Routes   []core.Route      `json:"routes,omitempty"`
	Markers  []core.Marker     `json:"markers"`
	Camera   core.CameraState  `json:"camera"`
	Time     TimeUpdatePayload `json:"time"`
}
