package reference

import (
	"time"

	"gorm.io/datatypes"
)

// ApplicationRequirement caches externally fetched requirements for one (university, program).
type ApplicationRequirement struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	University string         `gorm:"column:university;not null;uniqueIndex:idx_app_req_key,priority:1" json:"university"`
	Program    string         `gorm:"column:program;not null;uniqueIndex:idx_app_req_key,priority:2" json:"program"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload"`
	SourceURL  string         `gorm:"column:source_url" json:"source_url,omitempty"`
	FetchedAt  time.Time      `gorm:"column:fetched_at;not null;index" json:"fetched_at"`
}

func (ApplicationRequirement) TableName() string { return "application_requirements" }

// VisaRequirement caches visa rules for one (citizenship, destination) route.
type VisaRequirement struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Citizenship string         `gorm:"column:citizenship;not null;uniqueIndex:idx_visa_route,priority:1" json:"citizenship"`
	Destination string         `gorm:"column:destination;not null;uniqueIndex:idx_visa_route,priority:2" json:"destination"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload"`
	SourceURL   string         `gorm:"column:source_url" json:"source_url,omitempty"`
	FetchedAt   time.Time      `gorm:"column:fetched_at;not null;index" json:"fetched_at"`
}

func (VisaRequirement) TableName() string { return "visa_requirements" }
