package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels lists every table of the catalog schema in migration order.
var DatabaseModels = []interface{}{
	&CatalogInfo{},
	&Route{},
	&Campaign{},
	&Unit{},
	&Clip{},
	&PlaybackEvent{},
}

// CatalogInfo records when and from where the catalog was imported.
type CatalogInfo struct {
	ID         uint      `gorm:"primarykey"`
	ImportedAt time.Time `json:"importedAt"`
	Source     string    `json:"source" gorm:"size:255"`
	Routes     int       `json:"routes"`
	Campaigns  int       `json:"campaigns"`
}

func (*CatalogInfo) TableName() string {
	return "catalog_info"
}

// Route is a named polyline. Points holds the "[[lon,lat],...]" text.
type Route struct {
	ID     string `json:"id" gorm:"primaryKey;size:64"`
	Color  string `json:"defaultColor" gorm:"size:32"`
	Kind   string `json:"kind" gorm:"size:32"`
	Points string `json:"points" gorm:"type:text"`
}

func (*Route) TableName() string {
	return "routes"
}

// Campaign is one playable scenario. Ordinal keeps the catalog order.
type Campaign struct {
	ID            string `json:"id" gorm:"primaryKey;size:64"`
	Ordinal       int    `json:"ordinal" gorm:"index"`
	Title         string `json:"title" gorm:"size:255"`
	TimeSpanLabel string `json:"timeSpanLabel" gorm:"size:127"`
	Units         []Unit `json:"units" gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
	Clips         []Clip `json:"clips" gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
}

func (*Campaign) TableName() string {
	return "campaigns"
}

// Unit belongs to one campaign.
type Unit struct {
	ID         uint    `gorm:"primarykey"`
	CampaignID string  `json:"campaignId" gorm:"index;size:64"`
	Ordinal    int     `json:"ordinal"`
	UnitID     string  `json:"unitId" gorm:"size:64"`
	Name       string  `json:"name" gorm:"size:255"`
	Banner     string  `json:"banner" gorm:"size:512"`
	Size       float64 `json:"size"`
}

func (*Unit) TableName() string {
	return "units"
}

// Clip belongs to one campaign. Camera and Events are stored as JSON since
// they are only ever read back whole.
type Clip struct {
	ID         uint           `gorm:"primarykey"`
	CampaignID string         `json:"campaignId" gorm:"index;size:64"`
	Ordinal    int            `json:"ordinal"`
	UnitID     string         `json:"unitId" gorm:"size:64"`
	RouteID    string         `json:"routeId" gorm:"size:64"`
	T0         float64        `json:"t0"`
	T1         float64        `json:"t1"`
	Camera     datatypes.JSON `json:"camera"`
	Events     datatypes.JSON `json:"events"`
}

func (*Clip) TableName() string {
	return "clips"
}

// PlaybackEvent is one narrative event fired during a playback session.
// SessionID tells apart runs of the same campaign.
type PlaybackEvent struct {
	ID         uint      `gorm:"primarykey"`
	SessionID  string    `json:"sessionId" gorm:"index;size:64"`
	FiredAt    time.Time `json:"firedAt" gorm:"index"`
	CampaignID string    `json:"campaignId" gorm:"index;size:64"`
	ClipIndex  int       `json:"clipIndex"`
	EventIndex int       `json:"eventIndex"`
	UnitID     string    `json:"unitId" gorm:"size:64"`
	At         float64   `json:"at"`
	Text       string    `json:"text" gorm:"type:text"`
	Lon        *float64  `json:"lon"`
	Lat        *float64  `json:"lat"`
}

func (*PlaybackEvent) TableName() string {
	return "playback_events"
}
