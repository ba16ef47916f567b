package message

import (
	"strings"
	"time"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
)

// Goal is the marketing intent of a generated message.
type Goal string

const (
	GoalCartReminder           Goal = "cart-reminder"
	GoalPromotion              Goal = "promotion"
	GoalCampaignEngagement     Goal = "campaign-engagement"
	GoalSeasonalRecommendation Goal = "seasonal-recommendation"
	GoalPersonalizedSolution   Goal = "personalized-solution"
)

// DefaultGoal is preselected by the message form.
const DefaultGoal = GoalCartReminder

var goalLabels = map[Goal]string{
	GoalCartReminder:           "장바구니/위시리스트 리마인드",
	GoalPromotion:              "할인·프로모션 안내",
	GoalCampaignEngagement:     "브랜드 캠페인 참여 유도",
	GoalSeasonalRecommendation: "시즌·날씨 기반 추천",
	GoalPersonalizedSolution:   "개인 피부·고민 맞춤 솔루션",
}

// Goals lists every goal in form order.
func Goals() []Goal {
	return []Goal{
		GoalCartReminder,
		GoalPromotion,
		GoalCampaignEngagement,
		GoalSeasonalRecommendation,
		GoalPersonalizedSolution,
	}
}

// Valid reports whether g is a known goal.
func (g Goal) Valid() bool {
	_, ok := goalLabels[g]
	return ok
}

// DisplayLabel is the label shown in the goal selector.
func (g Goal) DisplayLabel() string {
	return goalLabels[g]
}

// ParseGoal accepts a goal slug or its display label; empty selects
// DefaultGoal.
func ParseGoal(raw string) (Goal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultGoal, nil
	}
	if g := Goal(strings.ToLower(raw)); g.Valid() {
		return g, nil
	}
	for g, label := range goalLabels {
		if label == raw {
			return g, nil
		}
	}
	return "", apperr.Validation("goal", "unknown goal %q", raw)
}

// Request describes one generation call. It is never persisted.
type Request struct {
	PersonaID string `json:"personaId"`
	Goal      Goal   `json:"goal"`
	Product   string `json:"product,omitempty"`
	Category  string `json:"category,omitempty"`
	Tone      string `json:"tone,omitempty"`
	Season    string `json:"season,omitempty"`
}

// Normalize trims free text and resolves the goal.
func (r Request) Normalize() (Request, error) {
	out := Request{
		PersonaID: strings.TrimSpace(r.PersonaID),
		Product:   strings.TrimSpace(r.Product),
		Category:  strings.TrimSpace(r.Category),
		Tone:      strings.TrimSpace(r.Tone),
		Season:    strings.TrimSpace(r.Season),
	}
	if out.PersonaID == "" {
		return Request{}, apperr.Validation("personaId", "is required")
	}
	if out.Product == "" && out.Category == "" {
		return Request{}, apperr.Validation("product", "product or category is required")
	}
	goal, err := ParseGoal(string(r.Goal))
	if err != nil {
		return Request{}, err
	}
	out.Goal = goal
	return out, nil
}

// Subject is what the message promotes: the product, else the category.
func (r Request) Subject() string {
	if r.Product != "" {
		return r.Product
	}
	return r.Category
}

// Generated is one immutable version of a session's message.
type Generated struct {
	ID          string    `json:"id"`
	Version     int       `json:"version"`
	Text        string    `json:"text"`
	Request     Request   `json:"request"`
	Instruction string    `json:"instruction,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// State is the workflow state of a message session.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StateReady      State = "ready"
	StateRefining   State = "refining"
)

// Busy reports whether an operation is in flight.
func (s State) Busy() bool {
	return s == StateGenerating || s == StateRefining
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID    string     `json:"sessionId"`
	State        State      `json:"state"`
	PersonaID    string     `json:"personaId,omitempty"`
	PersonaLabel string     `json:"personaLabel,omitempty"`
	Current      *Generated `json:"current,omitempty"`
	Versions     int        `json:"versions"`
	Closed       bool       `json:"closed,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
