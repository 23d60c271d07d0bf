package tools

import (
	"encoding/json"
	"fmt"
)

// ParamKind is the declared JSON value kind of a tool parameter.
type ParamKind string

const (
	KindString  ParamKind = "string"
	KindNumber  ParamKind = "number"
	KindBoolean ParamKind = "boolean"
	KindObject  ParamKind = "object"
)

// Param describes a single named tool parameter.
type Param struct {
	Name        string
	Kind        ParamKind
	Description string
	Required    bool
	// EntityRef marks parameters whose value names a physical device.
	// These are checked against placeholder patterns before dispatch.
	EntityRef bool
}

// Descriptor describes one invocable tool. Descriptors are immutable after
// registry population.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
}

// Param returns the named parameter declaration.
func (d Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// CallRequest is one requested tool invocation.
type CallRequest struct {
	// ID correlates the invocation with its originating request
	// (e.g. an LLM tool_call id). May be empty.
	ID string
	// Session attributes the call to the transport session that carried
	// it. Empty for sessionless callers (CLI, tests).
	Session string
	Name    string
	Args    map[string]interface{}
}

// CallResult is the uniform outcome envelope of one dispatch. Exactly one of
// Value or Error is meaningful, selected by OK.
type CallResult struct {
	ID    string      `json:"id,omitempty"`
	Name  string      `json:"tool"`
	OK    bool        `json:"ok"`
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Payload renders the result as a JSON document suitable for feeding back
// into a conversation. Failed results serialize as an error payload rather
// than being dropped.
func (r CallResult) Payload() string {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"ok":false,"error":"unserializable result"}`, r.Name)
	}
	return string(data)
}

// schemaProperty is the wire form of one inputSchema property.
type schemaProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type inputSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

// InputSchema renders the descriptor's parameter contract as a JSON schema
// object, the shape tools/list advertises.
func (d Descriptor) InputSchema() json.RawMessage {
	schema := inputSchema{
		Type:       "object",
		Properties: make(map[string]schemaProperty, len(d.Params)),
	}
	for _, p := range d.Params {
		schema.Properties[p.Name] = schemaProperty{
			Type:        string(p.Kind),
			Description: p.Description,
		}
		if p.Required {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	data, _ := json.Marshal(schema)
	return data
}

// ParseInputSchema rebuilds a Descriptor from a tools/list entry. Unknown
// property types default to string; entity-reference roles are recovered from
// the parameter name since the wire schema does not carry them.
func ParseInputSchema(name, description string, raw json.RawMessage) (Descriptor, error) {
	desc := Descriptor{Name: name, Description: description}
	if len(raw) == 0 {
		return desc, nil
	}

	var schema inputSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return Descriptor{}, fmt.Errorf("tool %s: parse input schema: %w", name, err)
	}

	required := make(map[string]bool, len(schema.Required))
	for _, r := range schema.Required {
		required[r] = true
	}

	for propName, prop := range schema.Properties {
		kind := ParamKind(prop.Type)
		switch kind {
		case KindString, KindNumber, KindBoolean, KindObject:
		default:
			kind = KindString
		}
		desc.Params = append(desc.Params, Param{
			Name:        propName,
			Kind:        kind,
			Description: prop.Description,
			Required:    required[propName],
			EntityRef:   isEntityRefName(propName),
		})
	}
	return desc, nil
}

// isEntityRefName reports whether a parameter name conventionally carries a
// device reference.
func isEntityRefName(name string) bool {
	switch name {
	case "device", "device_id", "deviceRef", "target":
		return true
	}
	return false
}
