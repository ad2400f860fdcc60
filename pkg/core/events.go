// pkg/core/events.go
package core

// EventPayload is handed to event listeners when an event fires.
type EventPayload struct {
	CampaignID string      `json:"campaignId"`
	ClipIndex  int         `json:"clipIndex"`
	EventIndex int         `json:"eventIndex"`
	UnitID     string      `json:"unitId"`
	At         float64     `json:"at"`
	Text       string      `json:"text"`
	Coords     *Position2D `json:"coords,omitempty"`
}

// TimeUpdate is reported after every recompute pass.
type TimeUpdate struct {
	Time    float64 `json:"time"`
	MaxTime float64 `json:"maxTime"`
	Playing bool    `json:"playing"`
}
