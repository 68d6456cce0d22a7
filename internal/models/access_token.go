package models

import "time"

// AccessToken persists the upstream bearer token so separate invocations can
// reuse it instead of requesting a new one.
type AccessToken struct {
	Name      string    `gorm:"column:name;primaryKey;type:varchar(64)"`
	Value     string    `gorm:"column:value;type:text;not null"`
	TokenType string    `gorm:"column:token_type;type:varchar(32);not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (AccessToken) TableName() string {
	return "mls_access_tokens"
}
