package persona

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the type of an attribute value.
type Kind string

const (
	KindString Kind = "string"
	KindLabel  Kind = "label"
	KindLabels Kind = "labels"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
)

// Value is one attribute value. Numbers are levels in the 0–100 range.
type Value struct {
	Kind   Kind
	Text   string
	Labels []string
	Number float64
	Bool   bool
}

func String(s string) Value { return Value{Kind: KindString, Text: s} }

func Label(s string) Value { return Value{Kind: KindLabel, Text: s} }

func Labels(labels ...string) Value {
	return Value{Kind: KindLabels, Labels: append([]string(nil), labels...)}
}

func Number(n float64) Value { return Value{Kind: KindNumber, Number: n} }

func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

func (v Value) validate() error {
	switch v.Kind {
	case KindString, KindBool, KindLabels:
		return nil
	case KindLabel:
		if strings.TrimSpace(v.Text) == "" {
			return fmt.Errorf("label must not be empty")
		}
		return nil
	case KindNumber:
		if v.Number < 0 || v.Number > 100 {
			return fmt.Errorf("number %v outside 0-100", v.Number)
		}
		return nil
	default:
		return fmt.Errorf("unknown kind %q", v.Kind)
	}
}

// String renders the value for prompts and labels.
func (v Value) String() string {
	switch v.Kind {
	case KindString, KindLabel:
		return strings.TrimSpace(v.Text)
	case KindLabels:
		return strings.Join(v.Labels, ",")
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "yes"
		}
		return "no"
	}
	return ""
}

type wireValue struct {
	Kind  Kind            `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// Raw returns the untagged value: a string, []string, float64 or bool.
func (v Value) Raw() (any, error) {
	switch v.Kind {
	case KindString, KindLabel:
		return v.Text, nil
	case KindLabels:
		labels := v.Labels
		if labels == nil {
			labels = []string{}
		}
		return labels, nil
	case KindNumber:
		return v.Number, nil
	case KindBool:
		return v.Bool, nil
	default:
		return nil, fmt.Errorf("unknown attribute kind %q", v.Kind)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	payload, err := v.Raw()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Kind: v.Kind, Value: raw})
}

// MarshalYAML renders the value as a {kind, value} mapping.
func (v Value) MarshalYAML() (any, error) {
	payload, err := v.Raw()
	if err != nil {
		return nil, err
	}
	return struct {
		Kind  Kind `yaml:"kind"`
		Value any  `yaml:"value"`
	}{v.Kind, payload}, nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var wire wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := Value{Kind: wire.Kind}
	var err error
	switch wire.Kind {
	case KindString, KindLabel:
		err = json.Unmarshal(wire.Value, &out.Text)
	case KindLabels:
		err = json.Unmarshal(wire.Value, &out.Labels)
	case KindNumber:
		err = json.Unmarshal(wire.Value, &out.Number)
	case KindBool:
		err = json.Unmarshal(wire.Value, &out.Bool)
	default:
		return fmt.Errorf("unknown attribute kind %q", wire.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s attribute: %w", wire.Kind, err)
	}
	*v = out
	return nil
}

// Attributes maps attribute keys to typed values.
type Attributes map[string]Value

// Text returns the rendered value for key, or "" when absent.
func (a Attributes) Text(key string) string {
	v, ok := a[key]
	if !ok {
		return ""
	}
	return v.String()
}

// List returns a multi-valued attribute as trimmed items. Labels values
// are returned as is; text values are split on commas.
func (a Attributes) List(key string) []string {
	v, ok := a[key]
	if !ok {
		return nil
	}
	var raw []string
	switch v.Kind {
	case KindLabels:
		raw = v.Labels
	case KindString, KindLabel:
		raw = strings.Split(v.Text, ",")
	default:
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for key := range a {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for key, value := range a {
		if value.Labels != nil {
			value.Labels = append([]string(nil), value.Labels...)
		}
		out[key] = value
	}
	return out
}
