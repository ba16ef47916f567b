package persona

import (
	"strings"
	"time"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
)

// SchemaVersion is the persona record layout written by this build.
// Version 1 covers the flat shapes of the early frontend forms.
const SchemaVersion = 2

// Persona is a synthetic customer profile used as a targeting input for
// message generation.
type Persona struct {
	ID            string     `json:"id" yaml:"id"`
	Name          string     `json:"name" yaml:"name"`
	SchemaVersion int        `json:"schemaVersion" yaml:"schemaVersion"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"createdAt"`
	Attributes    Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Canonical attribute keys. The bag is open; these are the keys the
// generators and labels understand.
const (
	KeyAge           = "age"
	KeyGender        = "gender"
	KeyJob           = "job"
	KeyDetail        = "detail"
	KeySkinType      = "skinType"
	KeySkinTone      = "skinTone"
	KeyConcerns      = "concerns"
	KeySensitivity   = "sensitivityLevel"
	KeyMoistureLevel = "moistureLevel"
	KeyOilLevel      = "oilLevel"
	KeySleep         = "sleep"
	KeyStress        = "stress"
	KeyDiet          = "diet"
	KeyBudget        = "budget"
)

// Validate checks the invariants a persona must hold before persistence.
func Validate(name string, attrs Attributes) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("name", "is required")
	}
	for key, value := range attrs {
		if strings.TrimSpace(key) == "" {
			return apperr.Validation("attributes", "empty attribute key")
		}
		if err := value.validate(); err != nil {
			return apperr.Validation("attributes."+key, "%v", err)
		}
	}
	return nil
}

// Label renders the "name/age/skinType" form shown in the simulation
// header; empty segments are omitted.
func (p Persona) Label() string {
	parts := []string{strings.TrimSpace(p.Name)}
	for _, key := range []string{KeyAge, KeySkinType} {
		if text := p.Attributes.Text(key); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "/")
}

// Summary describes the persona's traits in one line for prompts and
// canned templates.
func (p Persona) Summary() string {
	if detail := p.Attributes.Text(KeyDetail); detail != "" {
		return detail
	}

	var parts []string
	for _, key := range []string{KeySkinType, KeyConcerns, KeyBudget, KeyJob} {
		if text := p.Attributes.Text(key); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, ", ")
}

// DisplayName returns the name segment of a persona label.
func DisplayName(label string) string {
	name, _, _ := strings.Cut(label, "/")
	return strings.TrimSpace(name)
}
