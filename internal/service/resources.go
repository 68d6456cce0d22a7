package service

import (
	"strings"

	"mlssync/internal/repository"
)

const (
	ResourceProperty  = "Property"
	ResourceMember    = "Member"
	ResourceOffice    = "Office"
	ResourceOpenHouse = "OpenHouse"

	timestampField         = "RFModificationTimestamp"
	fallbackTimestampField = "ModificationTimestamp"
	timestampColumn        = "rf_modification_timestamp"
	firstSeenColumn        = "first_seen_at"
	rawJSONColumn          = "raw_json"
)

// ResourceConfig describes one upstream collection and the table it lands
// in. The sync engine is driven entirely by this record.
type ResourceConfig struct {
	Name     string
	Endpoint string
	Table    string
	KeyField string
	Fields   []FieldMap
}

// Key returns the natural-key column.
func (c ResourceConfig) Key() string {
	for _, f := range c.Fields {
		if f.Source == c.KeyField {
			return f.Column
		}
	}
	return ""
}

// Select lists the upstream fields requested with $select.
func (c ResourceConfig) Select() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Source)
	}
	return out
}

// UpdateColumns lists the columns rewritten when a row already exists. The
// key and first_seen_at are left out.
func (c ResourceConfig) UpdateColumns() []string {
	key := c.Key()
	out := make([]string, 0, len(c.Fields)+1)
	for _, f := range c.Fields {
		if f.Column == key {
			continue
		}
		out = append(out, f.Column)
	}
	return append(out, rawJSONColumn)
}

func (c ResourceConfig) Target(batchSize int) repository.UpsertTarget {
	return repository.UpsertTarget{
		Table:           c.Table,
		Key:             c.Key(),
		Columns:         c.UpdateColumns(),
		TimestampColumn: timestampColumn,
		BatchSize:       batchSize,
	}
}

// DefaultResources returns the four synced collections.
func DefaultResources() []ResourceConfig {
	return []ResourceConfig{
		propertyResource(),
		memberResource(),
		officeResource(),
		openHouseResource(),
	}
}

// LookupResource finds a resource by name, ignoring case. "Listing" is
// accepted for Property.
func LookupResource(resources []ResourceConfig, name string) (ResourceConfig, bool) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "listing") || strings.EqualFold(name, "listings") {
		name = ResourceProperty
	}
	for _, r := range resources {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return ResourceConfig{}, false
}

func timestamps() []FieldMap {
	return []FieldMap{
		{Source: fallbackTimestampField, Column: "modification_timestamp", Kind: FieldTime},
		{Source: timestampField, Column: timestampColumn, Kind: FieldTime},
	}
}

func propertyResource() ResourceConfig {
	fields := []FieldMap{
		{Source: "ListingKey", Column: "listing_key", Kind: FieldString},
		{Source: "ListingId", Column: "listing_id", Kind: FieldString},
		{Source: "StandardStatus", Column: "standard_status", Kind: FieldString},
		{Source: "PropertyType", Column: "property_type", Kind: FieldString},
		{Source: "PropertySubType", Column: "property_sub_type", Kind: FieldString},
		{Source: "ListPrice", Column: "list_price", Kind: FieldDecimal},
		{Source: "OriginalListPrice", Column: "original_list_price", Kind: FieldDecimal},
		{Source: "ClosePrice", Column: "close_price", Kind: FieldDecimal},
		{Source: "BedroomsTotal", Column: "bedrooms_total", Kind: FieldInt},
		{Source: "BathroomsTotalInteger", Column: "bathrooms_total_integer", Kind: FieldInt},
		{Source: "LivingArea", Column: "living_area", Kind: FieldDecimal},
		{Source: "LotSizeAcres", Column: "lot_size_acres", Kind: FieldDecimal},
		{Source: "YearBuilt", Column: "year_built", Kind: FieldInt},
		{Source: "UnparsedAddress", Column: "unparsed_address", Kind: FieldString},
		{Source: "City", Column: "city", Kind: FieldString},
		{Source: "StateOrProvince", Column: "state_or_province", Kind: FieldString},
		{Source: "PostalCode", Column: "postal_code", Kind: FieldString},
		{Source: "CountyOrParish", Column: "county_or_parish", Kind: FieldString},
		{Source: "Latitude", Column: "latitude", Kind: FieldFloat},
		{Source: "Longitude", Column: "longitude", Kind: FieldFloat},
		{Source: "ListAgentKey", Column: "list_agent_key", Kind: FieldString},
		{Source: "ListOfficeKey", Column: "list_office_key", Kind: FieldString},
		{Source: "PublicRemarks", Column: "public_remarks", Kind: FieldString},
		{Source: "PhotosCount", Column: "photos_count", Kind: FieldInt},
		{Source: "ListingContractDate", Column: "listing_contract_date", Kind: FieldDate},
		{Source: "CloseDate", Column: "close_date", Kind: FieldDate},
		{Source: "DaysOnMarket", Column: "days_on_market", Kind: FieldInt},
	}
	return ResourceConfig{
		Name:     ResourceProperty,
		Endpoint: "Property",
		Table:    "mls_properties",
		KeyField: "ListingKey",
		Fields:   append(fields, timestamps()...),
	}
}

func memberResource() ResourceConfig {
	fields := []FieldMap{
		{Source: "MemberKey", Column: "member_key", Kind: FieldString},
		{Source: "MemberMlsId", Column: "member_mls_id", Kind: FieldString},
		{Source: "MemberFirstName", Column: "member_first_name", Kind: FieldString},
		{Source: "MemberLastName", Column: "member_last_name", Kind: FieldString},
		{Source: "MemberFullName", Column: "member_full_name", Kind: FieldString},
		{Source: "MemberEmail", Column: "member_email", Kind: FieldString},
		{Source: "MemberPreferredPhone", Column: "member_preferred_phone", Kind: FieldString},
		{Source: "MemberStatus", Column: "member_status", Kind: FieldString},
		{Source: "MemberType", Column: "member_type", Kind: FieldString},
		{Source: "OfficeKey", Column: "office_key", Kind: FieldString},
	}
	return ResourceConfig{
		Name:     ResourceMember,
		Endpoint: "Member",
		Table:    "mls_members",
		KeyField: "MemberKey",
		Fields:   append(fields, timestamps()...),
	}
}

func officeResource() ResourceConfig {
	fields := []FieldMap{
		{Source: "OfficeKey", Column: "office_key", Kind: FieldString},
		{Source: "OfficeMlsId", Column: "office_mls_id", Kind: FieldString},
		{Source: "OfficeName", Column: "office_name", Kind: FieldString},
		{Source: "OfficePhone", Column: "office_phone", Kind: FieldString},
		{Source: "OfficeEmail", Column: "office_email", Kind: FieldString},
		{Source: "OfficeAddress1", Column: "office_address1", Kind: FieldString},
		{Source: "OfficeCity", Column: "office_city", Kind: FieldString},
		{Source: "OfficeStateOrProvince", Column: "office_state_or_province", Kind: FieldString},
		{Source: "OfficePostalCode", Column: "office_postal_code", Kind: FieldString},
		{Source: "OfficeStatus", Column: "office_status", Kind: FieldString},
		{Source: "OfficeBrokerKey", Column: "office_broker_key", Kind: FieldString},
	}
	return ResourceConfig{
		Name:     ResourceOffice,
		Endpoint: "Office",
		Table:    "mls_offices",
		KeyField: "OfficeKey",
		Fields:   append(fields, timestamps()...),
	}
}

func openHouseResource() ResourceConfig {
	fields := []FieldMap{
		{Source: "OpenHouseKey", Column: "open_house_key", Kind: FieldString},
		{Source: "ListingKey", Column: "listing_key", Kind: FieldString},
		{Source: "ListingId", Column: "listing_id", Kind: FieldString},
		{Source: "OpenHouseDate", Column: "open_house_date", Kind: FieldDate},
		{Source: "OpenHouseStartTime", Column: "open_house_start_time", Kind: FieldTime},
		{Source: "OpenHouseEndTime", Column: "open_house_end_time", Kind: FieldTime},
		{Source: "OpenHouseType", Column: "open_house_type", Kind: FieldString},
		{Source: "OpenHouseStatus", Column: "open_house_status", Kind: FieldString},
		{Source: "OpenHouseRemarks", Column: "open_house_remarks", Kind: FieldString},
		{Source: "ShowingAgentKey", Column: "showing_agent_key", Kind: FieldString},
	}
	return ResourceConfig{
		Name:     ResourceOpenHouse,
		Endpoint: "OpenHouse",
		Table:    "mls_open_houses",
		KeyField: "OpenHouseKey",
		Fields:   append(fields, timestamps()...),
	}
}
