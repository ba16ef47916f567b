package persona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type document struct {
	SchemaVersion int               `json:"schemaVersion"`
	Personas      []json.RawMessage `json:"personas"`
}

// Encode serializes the ordered collection into the stored document.
func Encode(items []Persona) ([]byte, error) {
	doc := document{SchemaVersion: SchemaVersion, Personas: make([]json.RawMessage, 0, len(items))}
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode persona %s: %w", item.ID, err)
		}
		doc.Personas = append(doc.Personas, raw)
	}
	return json.Marshal(doc)
}

// Decode parses a stored collection. A bare JSON array is the version 1
// layout and is migrated item by item.
//
// Entries that decode but break the persona invariants (empty name,
// numbers outside 0..100) are left out and reported in skipped. A
// malformed document or entry fails the whole decode.
func Decode(data []byte) (items []Persona, skipped []error, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil, nil
	}

	var raws []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, nil, fmt.Errorf("decode legacy collection: %w", err)
		}
	} else {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, nil, fmt.Errorf("decode collection: %w", err)
		}
		if doc.SchemaVersion > SchemaVersion {
			return nil, nil, fmt.Errorf("collection schema version %d is newer than supported %d", doc.SchemaVersion, SchemaVersion)
		}
		raws = doc.Personas
	}

	items = make([]Persona, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	for i, raw := range raws {
		item, err := decodePersona(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("persona #%d: %w", i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, nil, fmt.Errorf("persona #%d: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = struct{}{}
		if err := Validate(item.Name, item.Attributes); err != nil {
			skipped = append(skipped, fmt.Errorf("persona #%d (%s): %w", i, item.ID, err))
			continue
		}
		items = append(items, item)
	}
	return items, skipped, nil
}

func decodePersona(raw json.RawMessage) (Persona, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var label string
		if err := json.Unmarshal(raw, &label); err != nil {
			return Persona{}, err
		}
		return fromSlashLabel(label)
	}

	var probe struct {
		SchemaVersion int             `json:"schemaVersion"`
		Attributes    json.RawMessage `json:"attributes"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Persona{}, err
	}

	if probe.SchemaVersion >= SchemaVersion {
		var p Persona
		if err := json.Unmarshal(raw, &p); err != nil {
			return Persona{}, err
		}
		if p.ID == "" {
			return Persona{}, fmt.Errorf("missing id")
		}
		return p, nil
	}

	var flat map[string]any
	if err := json.Unmarshal(raw, &flat); err != nil {
		return Persona{}, err
	}
	return migrateFlat(flat)
}

// legacyKeys renames fields of the detailed backend form to the
// canonical keys.
var legacyKeys = map[string]string{
	"occupation":   KeyJob,
	"skinConcerns": KeyConcerns,
	"sleepHours":   KeySleep,
	"stressLevel":  KeyStress,
	"dietQuality":  KeyDiet,
	"priceRange":   KeyBudget,
}

// labelKeys hold single choices picked from a fixed option list.
var labelKeys = map[string]bool{
	KeyGender:           true,
	KeySkinTone:         true,
	KeySensitivity:      true,
	KeySleep:            true,
	KeyStress:           true,
	KeyDiet:             true,
	KeyBudget:           true,
	"exerciseFrequency": true,
	"makeupFrequency":   true,
	"climate":           true,
}

// migrateFlat converts a version 1 flat object ({id, name, age, job,
// skinType: [...], ...}) into the current layout.
func migrateFlat(flat map[string]any) (Persona, error) {
	p := Persona{SchemaVersion: SchemaVersion, Attributes: Attributes{}}

	switch id := flat["id"].(type) {
	case string:
		p.ID = id
	case float64:
		p.ID = strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return Persona{}, fmt.Errorf("missing id")
	}
	if p.ID == "" {
		return Persona{}, fmt.Errorf("missing id")
	}

	name, _ := flat["name"].(string)
	p.Name = strings.TrimSpace(name)

	for key, raw := range flat {
		if key == "id" || key == "name" {
			continue
		}
		if renamed, ok := legacyKeys[key]; ok {
			key = renamed
		}
		value, ok := legacyValue(key, raw)
		if !ok {
			continue
		}
		p.Attributes[key] = value
	}
	return p, nil
}

func legacyValue(key string, raw any) (Value, bool) {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Value{}, false
		}
		if labelKeys[key] {
			return Label(v), true
		}
		return String(v), true
	case bool:
		return Bool(v), true
	case float64:
		// Out-of-range numbers are kept so Validate rejects the entry.
		return Number(v), true
	case []any:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				labels = append(labels, s)
			}
		}
		return Labels(labels...), true
	default:
		return Value{}, false
	}
}

// fromSlashLabel migrates the minimal "name/age/skinType" form.
func fromSlashLabel(label string) (Persona, error) {
	parts := strings.Split(label, "/")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return Persona{}, fmt.Errorf("empty persona label")
	}

	p := Persona{ID: "label:" + strings.TrimSpace(label), Name: name, SchemaVersion: SchemaVersion, Attributes: Attributes{}}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		p.Attributes[KeyAge] = String(strings.TrimSpace(parts[1]))
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		p.Attributes[KeySkinType] = Labels(strings.TrimSpace(parts[2]))
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		p.Attributes[KeyBudget] = Label(strings.TrimSpace(parts[3]))
	}
	return p, nil
}
