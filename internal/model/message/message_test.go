package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/persona-studio/backend/internal/apperr"
)

func TestParseGoal(t *testing.T) {
	g, err := ParseGoal("")
	require.NoError(t, err)
	assert.Equal(t, GoalCartReminder, g)

	g, err = ParseGoal("Promotion")
	require.NoError(t, err)
	assert.Equal(t, GoalPromotion, g)

	g, err = ParseGoal("시즌·날씨 기반 추천")
	require.NoError(t, err)
	assert.Equal(t, GoalSeasonalRecommendation, g)

	_, err = ParseGoal("spam")
	assert.True(t, apperr.IsValidation(err))
}

func TestGoalsHaveLabels(t *testing.T) {
	for _, g := range Goals() {
		assert.True(t, g.Valid())
		assert.NotEmpty(t, g.DisplayLabel(), g)
	}
}

func TestRequestNormalize(t *testing.T) {
	req, err := Request{PersonaID: " p1 ", Product: " Water Bank Cream ", Goal: "promotion"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, "p1", req.PersonaID)
	assert.Equal(t, "Water Bank Cream", req.Subject())

	req, err = Request{PersonaID: "p1", Category: "스킨케어"}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultGoal, req.Goal)
	assert.Equal(t, "스킨케어", req.Subject())

	_, err = Request{Product: "x"}.Normalize()
	assert.True(t, apperr.IsValidation(err))

	_, err = Request{PersonaID: "p1", Tone: "warm"}.Normalize()
	assert.True(t, apperr.IsValidation(err))

	_, err = Request{PersonaID: "p1", Product: "x", Goal: "nope"}.Normalize()
	assert.True(t, apperr.IsValidation(err))
}

func TestStateBusy(t *testing.T) {
	assert.True(t, StateGenerating.Busy())
	assert.True(t, StateRefining.Busy())
	assert.False(t, StateIdle.Busy())
	assert.False(t, StateReady.Busy())
}
