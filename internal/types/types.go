package types

// RawIOC is one joined event+attribute row as it comes off the MISP
// database, timestamps still in epoch form. Nullable columns are pointers.
type RawIOC struct {
	EventID            int64
	EventUUID          string
	EventInfo          string
	EventDate          string
	EventTimestamp     *int64
	AttributeID        int64
	AttributeType      string
	AttributeCategory  string
	AttributeValue     string
	AttributeTimestamp *int64
	AttributeComment   *string
	AttributeToIDS     bool
}

// IOCRecord is the normalized form written to the JSON snapshot and the
// cache database. Epoch timestamps have been rendered as local-time
// "YYYY-MM-DD HH:MM:SS" strings; a nil timestamp stays nil.
type IOCRecord struct {
	EventID            int64   `json:"event_id"`
	EventUUID          string  `json:"event_uuid"`
	EventInfo          string  `json:"event_info"`
	EventDate          string  `json:"event_date"`
	EventTimestamp     *string `json:"event_timestamp"`
	AttributeID        int64   `json:"attribute_id"`
	AttributeType      string  `json:"attribute_type"`
	AttributeCategory  string  `json:"attribute_category"`
	AttributeValue     string  `json:"attribute_value"`
	AttributeTimestamp *string `json:"attribute_timestamp"`
	AttributeComment   *string `json:"attribute_comment"`
	AttributeToIDS     bool    `json:"attribute_to_ids"`
}
