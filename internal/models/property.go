package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Property is a listing row keyed by the upstream ListingKey.
type Property struct {
	ListingKey              string           `gorm:"column:listing_key;primaryKey;type:text" json:"listing_key"`
	ListingID               *string          `gorm:"column:listing_id;type:text;index" json:"listing_id"`
	StandardStatus          *string          `gorm:"column:standard_status;type:text;index" json:"standard_status"`
	PropertyType            *string          `gorm:"column:property_type;type:text;index" json:"property_type"`
	PropertySubType         *string          `gorm:"column:property_sub_type;type:text" json:"property_sub_type"`
	ListPrice               *decimal.Decimal `gorm:"column:list_price;type:numeric(14,2);index" json:"list_price"`
	OriginalListPrice       *decimal.Decimal `gorm:"column:original_list_price;type:numeric(14,2)" json:"original_list_price"`
	ClosePrice              *decimal.Decimal `gorm:"column:close_price;type:numeric(14,2)" json:"close_price"`
	BedroomsTotal           *int             `gorm:"column:bedrooms_total" json:"bedrooms_total"`
	BathroomsTotalInteger   *int             `gorm:"column:bathrooms_total_integer" json:"bathrooms_total_integer"`
	LivingArea              *decimal.Decimal `gorm:"column:living_area;type:numeric(12,2)" json:"living_area"`
	LotSizeAcres            *decimal.Decimal `gorm:"column:lot_size_acres;type:numeric(12,4)" json:"lot_size_acres"`
	YearBuilt               *int             `gorm:"column:year_built" json:"year_built"`
	UnparsedAddress         *string          `gorm:"column:unparsed_address;type:text" json:"unparsed_address"`
	City                    *string          `gorm:"column:city;type:text;index" json:"city"`
	StateOrProvince         *string          `gorm:"column:state_or_province;type:text" json:"state_or_province"`
	PostalCode              *string          `gorm:"column:postal_code;type:text;index" json:"postal_code"`
	CountyOrParish          *string          `gorm:"column:county_or_parish;type:text" json:"county_or_parish"`
	Latitude                *float64         `gorm:"column:latitude" json:"latitude"`
	Longitude               *float64         `gorm:"column:longitude" json:"longitude"`
	ListAgentKey            *string          `gorm:"column:list_agent_key;type:text;index" json:"list_agent_key"`
	ListOfficeKey           *string          `gorm:"column:list_office_key;type:text;index" json:"list_office_key"`
	PublicRemarks           *string          `gorm:"column:public_remarks;type:text" json:"public_remarks"`
	PhotosCount             *int             `gorm:"column:photos_count" json:"photos_count"`
	ListingContractDate     *time.Time       `gorm:"column:listing_contract_date;type:date" json:"listing_contract_date"`
	CloseDate               *time.Time       `gorm:"column:close_date;type:date" json:"close_date"`
	DaysOnMarket            *int             `gorm:"column:days_on_market" json:"days_on_market"`
	ModificationTimestamp   *time.Time       `gorm:"column:modification_timestamp" json:"modification_timestamp"`
	RFModificationTimestamp *time.Time       `gorm:"column:rf_modification_timestamp;index" json:"rf_modification_timestamp"`
	FirstSeenAt             time.Time        `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	RawJSON                 datatypes.JSON   `gorm:"column:raw_json;not null" json:"-"`
}

func (Property) TableName() string {
	return "mls_properties"
}
