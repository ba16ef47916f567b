package persona

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCurrent(t *testing.T) {
	items := []Persona{
		{ID: "a", Name: "Kim", SchemaVersion: SchemaVersion, CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			Attributes: Attributes{KeySkinType: Labels("combination")}},
		{ID: "b", Name: "Lee", SchemaVersion: SchemaVersion},
	}

	data, err := Encode(items)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"schemaVersion":2`)

	got, skipped, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, items[0].CreatedAt, got[0].CreatedAt)
	assert.Equal(t, "combination", got[0].Attributes.Text(KeySkinType))
}

func TestDecodeLegacyDetailedForm(t *testing.T) {
	legacy := `[{"id":1733900000000,"name":"김민지","age":"24","job":"학생",
		"skinType":["수부지"],"concerns":["모공","속건조"],"sleep":"6~7시간",
		"stress":"","diet":"불규칙","budget":"가성비 중시"}]`

	got, skipped, err := Decode([]byte(legacy))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, got, 1)

	p := got[0]
	assert.Equal(t, "1733900000000", p.ID)
	assert.Equal(t, "김민지", p.Name)
	assert.Equal(t, SchemaVersion, p.SchemaVersion)
	assert.Equal(t, Labels("수부지"), p.Attributes[KeySkinType])
	assert.Equal(t, Label("6~7시간"), p.Attributes[KeySleep])
	assert.Equal(t, Label("가성비 중시"), p.Attributes[KeyBudget])
	assert.NotContains(t, p.Attributes, KeyStress, "empty legacy strings are dropped")
}

func TestDecodeLegacyBackendFieldsAreRenamed(t *testing.T) {
	legacy := `[{"id":"p1","name":"Lee","occupation":"designer","skinConcerns":["wrinkles"],
		"moistureLevel":70,"oilLevel":20,"veganCrueltyFree":true}]`

	got, _, err := Decode([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, got, 1)
	p := got[0]
	assert.Equal(t, String("designer"), p.Attributes[KeyJob])
	assert.Equal(t, Labels("wrinkles"), p.Attributes[KeyConcerns])
	assert.Equal(t, Number(70), p.Attributes[KeyMoistureLevel])
	assert.Equal(t, Bool(true), p.Attributes["veganCrueltyFree"])
}

func TestDecodeSlashLabel(t *testing.T) {
	got, _, err := Decode([]byte(`["김민지/20대/수부지/가성비"]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "김민지", got[0].Name)
	assert.Equal(t, "김민지/20대/수부지", got[0].Label())
	assert.Equal(t, "가성비", got[0].Attributes.Text(KeyBudget))
}

func TestDecodeRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"not json":     `{{{`,
		"missing id":   `[{"name":"x"}]`,
		"duplicate id": `[{"id":"a","name":"x"},{"id":"a","name":"y"}]`,
		"future":       `{"schemaVersion":99,"personas":[]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	got, skipped, err := Decode([]byte("  "))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, skipped)
}

func TestDecodeSkipsEntriesBreakingInvariants(t *testing.T) {
	cases := map[string]string{
		"legacy empty name":   `[{"id":1,"name":""},{"id":2,"name":"Kim"}]`,
		"legacy out of range": `[{"id":1,"name":"Lee","moistureLevel":250},{"id":2,"name":"Kim"}]`,
		"current empty name": `{"schemaVersion":2,"personas":[
			{"id":"x","name":"","schemaVersion":2},
			{"id":"2","name":"Kim","schemaVersion":2}]}`,
		"current out of range": `{"schemaVersion":2,"personas":[
			{"id":"x","name":"Lee","schemaVersion":2,"attributes":{"oilLevel":{"kind":"number","value":900}}},
			{"id":"2","name":"Kim","schemaVersion":2}]}`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got, skipped, err := Decode([]byte(input))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "Kim", got[0].Name)
			assert.Len(t, skipped, 1)
		})
	}
}
