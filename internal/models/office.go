package models

import (
	"time"

	"gorm.io/datatypes"
)

type Office struct {
	OfficeKey               string         `gorm:"column:office_key;primaryKey;type:text" json:"office_key"`
	OfficeMlsID             *string        `gorm:"column:office_mls_id;type:text;index" json:"office_mls_id"`
	OfficeName              *string        `gorm:"column:office_name;type:text;index" json:"office_name"`
	OfficePhone             *string        `gorm:"column:office_phone;type:text" json:"office_phone"`
	OfficeEmail             *string        `gorm:"column:office_email;type:text" json:"office_email"`
	OfficeAddress1          *string        `gorm:"column:office_address1;type:text" json:"office_address1"`
	OfficeCity              *string        `gorm:"column:office_city;type:text" json:"office_city"`
	OfficeStateOrProvince   *string        `gorm:"column:office_state_or_province;type:text" json:"office_state_or_province"`
	OfficePostalCode        *string        `gorm:"column:office_postal_code;type:text" json:"office_postal_code"`
	OfficeStatus            *string        `gorm:"column:office_status;type:text" json:"office_status"`
	OfficeBrokerKey         *string        `gorm:"column:office_broker_key;type:text" json:"office_broker_key"`
	ModificationTimestamp   *time.Time     `gorm:"column:modification_timestamp" json:"modification_timestamp"`
	RFModificationTimestamp *time.Time     `gorm:"column:rf_modification_timestamp;index" json:"rf_modification_timestamp"`
	FirstSeenAt             time.Time      `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	RawJSON                 datatypes.JSON `gorm:"column:raw_json;not null" json:"-"`
}

func (Office) TableName() string {
	return "mls_offices"
}
