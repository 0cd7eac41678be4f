package model

import (
	"encoding/json"
	"net/url"
)

// -----------------------------------------------------------------------------
// Nodes
// -----------------------------------------------------------------------------

// Node is a device paired with the hub. The hub reports itself as node -1.
type Node struct {
	ID           int64       `json:"id"`
	Name         EncodedText `json:"name"`
	Profile      int         `json:"profile"`
	Protocol     int         `json:"protocol"`
	State        int         `json:"state"`         // 1 = available, 2 = unavailable, ...
	StateChanged int64       `json:"state_changed"` // Unix seconds
	Added        int64       `json:"added"`         // Unix seconds
	CubeType     int         `json:"cube_type"`
	Attributes   []Attribute `json:"attributes"`
}

// Attribute is a single readable/writable value on a node.
type Attribute struct {
	ID           int64       `json:"id"`
	NodeID       int64       `json:"node_id"`
	Instance     int         `json:"instance"`
	Minimum      float64     `json:"minimum"`
	Maximum      float64     `json:"maximum"`
	CurrentValue float64     `json:"current_value"`
	TargetValue  float64     `json:"target_value"`
	LastValue    float64     `json:"last_value"`
	Unit         EncodedText `json:"unit"`
	StepValue    float64     `json:"step_value"`
	Editable     int         `json:"editable"`
	Type         int         `json:"type"`
	State        int         `json:"state"`
	LastChanged  int64       `json:"last_changed"` // Unix seconds
	Name         EncodedText `json:"name"`
}

// -----------------------------------------------------------------------------
// Relationships
// -----------------------------------------------------------------------------

// Relationship links a node (or homeegram) to a group.
type Relationship struct {
	ID          int64 `json:"id"`
	GroupID     int64 `json:"group_id"`
	NodeID      int64 `json:"node_id"`
	HomeegramID int64 `json:"homeegram_id"`
	Order       int   `json:"order"`
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// EncodedText is a string the hub sends URL-encoded (names, units).
type EncodedText string

// UnmarshalJSON decodes the JSON string and then its URL encoding.
// Strings that are not valid URL encoding are kept verbatim.
func (t *EncodedText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if decoded, err := url.QueryUnescape(s); err == nil {
		s = decoded
	}
	*t = EncodedText(s)
	return nil
}

// String returns the decoded text.
func (t EncodedText) String() string {
	return string(t)
}
