package models

import (
	"time"

	"gorm.io/datatypes"
)

type OpenHouse struct {
	OpenHouseKey            string         `gorm:"column:open_house_key;primaryKey;type:text" json:"open_house_key"`
	ListingKey              *string        `gorm:"column:listing_key;type:text;index" json:"listing_key"`
	ListingID               *string        `gorm:"column:listing_id;type:text" json:"listing_id"`
	OpenHouseDate           *time.Time     `gorm:"column:open_house_date;type:date;index" json:"open_house_date"`
	OpenHouseStartTime      *time.Time     `gorm:"column:open_house_start_time" json:"open_house_start_time"`
	OpenHouseEndTime        *time.Time     `gorm:"column:open_house_end_time" json:"open_house_end_time"`
	OpenHouseType           *string        `gorm:"column:open_house_type;type:text" json:"open_house_type"`
	OpenHouseStatus         *string        `gorm:"column:open_house_status;type:text" json:"open_house_status"`
	OpenHouseRemarks        *string        `gorm:"column:open_house_remarks;type:text" json:"open_house_remarks"`
	ShowingAgentKey         *string        `gorm:"column:showing_agent_key;type:text" json:"showing_agent_key"`
	ModificationTimestamp   *time.Time     `gorm:"column:modification_timestamp" json:"modification_timestamp"`
	RFModificationTimestamp *time.Time     `gorm:"column:rf_modification_timestamp;index" json:"rf_modification_timestamp"`
	FirstSeenAt             time.Time      `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	RawJSON                 datatypes.JSON `gorm:"column:raw_json;not null" json:"-"`
}

func (OpenHouse) TableName() string {
	return "mls_open_houses"
}
