package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingPayload is returned when the expected top-level key is absent or null.
var ErrMissingPayload = errors.New("missing payload")

// DecodeError reports a payload whose shape was recognized but whose
// structure could not be decoded.
type DecodeError struct {
	Kind string // "nodes" or "relationships"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// nodesWire is the wire format for a {"nodes":[...]} push.
type nodesWire struct {
	Nodes *[]Node `json:"nodes"`
}

// relationshipsWire is the wire format for a {"relationships":[...]} push.
type relationshipsWire struct {
	Relationships *[]Relationship `json:"relationships"`
}

// DecodeNodeUpdate decodes a node push into its ordered node list.
// A successful decode never returns a nil slice.
func DecodeNodeUpdate(data []byte) ([]Node, error) {
	var wire nodesWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{Kind: "nodes", Err: err}
	}
	if wire.Nodes == nil {
		return nil, &DecodeError{Kind: "nodes", Err: ErrMissingPayload}
	}

	nodes := *wire.Nodes
	if nodes == nil {
		nodes = []Node{}
	}
	return nodes, nil
}

// DecodeRelationshipUpdate decodes a relationship push into its ordered list.
// A successful decode never returns a nil slice.
func DecodeRelationshipUpdate(data []byte) ([]Relationship, error) {
	var wire relationshipsWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DecodeError{Kind: "relationships", Err: err}
	}
	if wire.Relationships == nil {
		return nil, &DecodeError{Kind: "relationships", Err: ErrMissingPayload}
	}

	rels := *wire.Relationships
	if rels == nil {
		rels = []Relationship{}
	}
	return rels, nil
}
