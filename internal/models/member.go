package models

import (
	"time"

	"gorm.io/datatypes"
)

type Member struct {
	MemberKey               string         `gorm:"column:member_key;primaryKey;type:text" json:"member_key"`
	MemberMlsID             *string        `gorm:"column:member_mls_id;type:text;index" json:"member_mls_id"`
	MemberFirstName         *string        `gorm:"column:member_first_name;type:text" json:"member_first_name"`
	MemberLastName          *string        `gorm:"column:member_last_name;type:text" json:"member_last_name"`
	MemberFullName          *string        `gorm:"column:member_full_name;type:text;index" json:"member_full_name"`
	MemberEmail             *string        `gorm:"column:member_email;type:text" json:"member_email"`
	MemberPreferredPhone    *string        `gorm:"column:member_preferred_phone;type:text" json:"member_preferred_phone"`
	MemberStatus            *string        `gorm:"column:member_status;type:text" json:"member_status"`
	MemberType              *string        `gorm:"column:member_type;type:text" json:"member_type"`
	OfficeKey               *string        `gorm:"column:office_key;type:text;index" json:"office_key"`
	ModificationTimestamp   *time.Time     `gorm:"column:modification_timestamp" json:"modification_timestamp"`
	RFModificationTimestamp *time.Time     `gorm:"column:rf_modification_timestamp;index" json:"rf_modification_timestamp"`
	FirstSeenAt             time.Time      `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	RawJSON                 datatypes.JSON `gorm:"column:raw_json;not null" json:"-"`
}

func (Member) TableName() string {
	return "mls_members"
}
