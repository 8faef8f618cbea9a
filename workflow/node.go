// Package workflow defines the serializable workflow definition model: nodes,
// typed edges, cache slots, switch conditions, and provider parameters.
//
// Definitions are plain data. Compiling one into an executable graph is the
// engine package's job; structural validation beyond JSON shape lives in the
// graph package.
package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// NodeID uniquely identifies a node within a workflow graph.
type NodeID uuid.UUID

// NewNodeID returns a random NodeID.
func NewNodeID() NodeID {
	return NodeID(uuid.New())
}

// ParseNodeID parses a NodeID from its canonical UUID string form.
func ParseNodeID(s string) (NodeID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("parse node id: %w", err)
	}
	return NodeID(id), nil
}

func (id NodeID) String() string {
	return uuid.UUID(id).String()
}

// UUID returns the underlying UUID.
func (id NodeID) UUID() uuid.UUID {
	return uuid.UUID(id)
}

// MarshalText implements encoding.TextMarshaler, which also makes NodeID
// usable as a JSON object key.
func (id NodeID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *NodeID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	if err != nil {
		return fmt.Errorf("parse node id: %w", err)
	}
	*id = NodeID(parsed)
	return nil
}

// Kind is the closed set of node kinds. Exactly one kind per node, immutable
// after construction. Every place that cares about kinds switches over all
// implementations, so adding a kind is a forced update everywhere it matters.
type Kind interface {
	isKind()
	kindName() string
}

// ProviderInput reads data units from an external provider.
type ProviderInput struct {
	Provider ProviderParams `json:"provider"`
}

// CacheInput reads data units from a named in-definition cache slot. Cache
// nodes are resolved away at compile time and never survive into a compiled
// graph.
type CacheInput struct {
	Slot     string `json:"slot" validate:"required"`
	Priority *int   `json:"priority,omitempty"`
}

// ProviderOutput writes data units to an external provider. BatchSize zero
// means the engine default.
type ProviderOutput struct {
	Provider  ProviderParams `json:"provider"`
	BatchSize int            `json:"batch_size,omitempty" validate:"gte=0"`
}

// CacheOutput writes data units to a named in-definition cache slot.
type CacheOutput struct {
	Slot     string `json:"slot" validate:"required"`
	Priority *int   `json:"priority,omitempty"`
}

// Transform applies one of the six transformer kinds.
type Transform struct {
	Transformer Transformer `json:"transformer"`
}

// Switch routes each data unit to exactly one of two output ports based on a
// condition.
type Switch struct {
	Condition Condition `json:"condition"`
	MatchPort string    `json:"match_port" validate:"required"`
	ElsePort  string    `json:"else_port" validate:"required"`
}

func (ProviderInput) isKind()  {}
func (CacheInput) isKind()     {}
func (ProviderOutput) isKind() {}
func (CacheOutput) isKind()    {}
func (Transform) isKind()      {}
func (Switch) isKind()         {}

func (ProviderInput) kindName() string  { return "provider_input" }
func (CacheInput) kindName() string     { return "cache_input" }
func (ProviderOutput) kindName() string { return "provider_output" }
func (CacheOutput) kindName() string    { return "cache_output" }
func (Transform) kindName() string      { return "transform" }
func (Switch) kindName() string         { return "switch" }

// IsInput reports whether k reads data into the graph.
func IsInput(k Kind) bool {
	switch k.(type) {
	case ProviderInput, CacheInput:
		return true
	}
	return false
}

// IsOutput reports whether k writes data out of the graph.
func IsOutput(k Kind) bool {
	switch k.(type) {
	case ProviderOutput, CacheOutput:
		return true
	}
	return false
}

// IsTransform reports whether k is a transformer node.
func IsTransform(k Kind) bool {
	_, ok := k.(Transform)
	return ok
}

// IsSwitch reports whether k is a switch node.
func IsSwitch(k Kind) bool {
	_, ok := k.(Switch)
	return ok
}

// IsCache reports whether k exists only to express cache-slot indirection.
// Cache nodes are dropped during compilation.
func IsCache(k Kind) bool {
	switch k.(type) {
	case CacheInput, CacheOutput:
		return true
	}
	return false
}

// Node is a single workflow node: a kind plus optional display metadata.
type Node struct {
	Kind Kind
	Name string
}

// NewNode wraps a kind in a Node with no display name.
func NewNode(k Kind) Node {
	return Node{Kind: k}
}

type nodeEnvelope struct {
	Kind string          `json:"kind"`
	Name string          `json:"name,omitempty"`
	Spec json.RawMessage `json:"spec"`
}

// MarshalJSON encodes the node as {"kind": ..., "name": ..., "spec": {...}}.
func (n Node) MarshalJSON() ([]byte, error) {
	if n.Kind == nil {
		return nil, fmt.Errorf("node has no kind")
	}
	spec, err := json.Marshal(n.Kind)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeEnvelope{Kind: n.Kind.kindName(), Name: n.Name, Spec: spec})
}

// UnmarshalJSON decodes the envelope produced by MarshalJSON.
func (n *Node) UnmarshalJSON(b []byte) error {
	var env nodeEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var kind Kind
	switch env.Kind {
	case "provider_input":
		var k ProviderInput
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	case "cache_input":
		var k CacheInput
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	case "provider_output":
		var k ProviderOutput
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	case "cache_output":
		var k CacheOutput
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	case "transform":
		var k Transform
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	case "switch":
		var k Switch
		if err := json.Unmarshal(env.Spec, &k); err != nil {
			return err
		}
		kind = k
	default:
		return fmt.Errorf("unknown node kind %q", env.Kind)
	}

	n.Kind = kind
	n.Name = env.Name
	return nil
}

// MarshalJSON tags the wrapped provider params with their kind.
func (k ProviderInput) MarshalJSON() ([]byte, error) {
	provider, err := marshalProviderParams(k.Provider)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Provider json.RawMessage `json:"provider"`
	}{provider})
}

// UnmarshalJSON resolves the wrapped provider params by kind.
func (k *ProviderInput) UnmarshalJSON(b []byte) error {
	var raw struct {
		Provider json.RawMessage `json:"provider"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	params, err := unmarshalProviderParams(raw.Provider)
	if err != nil {
		return err
	}
	k.Provider = params
	return nil
}

func (k ProviderOutput) MarshalJSON() ([]byte, error) {
	provider, err := marshalProviderParams(k.Provider)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Provider  json.RawMessage `json:"provider"`
		BatchSize int             `json:"batch_size,omitempty"`
	}{provider, k.BatchSize})
}

func (k *ProviderOutput) UnmarshalJSON(b []byte) error {
	var raw struct {
		Provider  json.RawMessage `json:"provider"`
		BatchSize int             `json:"batch_size"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	params, err := unmarshalProviderParams(raw.Provider)
	if err != nil {
		return err
	}
	k.Provider = params
	k.BatchSize = raw.BatchSize
	return nil
}

func (k Transform) MarshalJSON() ([]byte, error) {
	transformer, err := marshalTransformer(k.Transformer)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Transformer json.RawMessage `json:"transformer"`
	}{transformer})
}

func (k *Transform) UnmarshalJSON(b []byte) error {
	var raw struct {
		Transformer json.RawMessage `json:"transformer"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t, err := unmarshalTransformer(raw.Transformer)
	if err != nil {
		return err
	}
	k.Transformer = t
	return nil
}

func (k Switch) MarshalJSON() ([]byte, error) {
	condition, err := marshalCondition(k.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Condition json.RawMessage `json:"condition"`
		MatchPort string          `json:"match_port"`
		ElsePort  string          `json:"else_port"`
	}{condition, k.MatchPort, k.ElsePort})
}

func (k *Switch) UnmarshalJSON(b []byte) error {
	var raw struct {
		Condition json.RawMessage `json:"condition"`
		MatchPort string          `json:"match_port"`
		ElsePort  string          `json:"else_port"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c, err := unmarshalCondition(raw.Condition)
	if err != nil {
		return err
	}
	k.Condition = c
	k.MatchPort = raw.MatchPort
	k.ElsePort = raw.ElsePort
	return nil
}
