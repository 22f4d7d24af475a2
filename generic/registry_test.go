package generic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysmayal/tracking-engine/generic"
)

func TestRegistry_LookupAndList(t *testing.T) {
	registry := generic.NewRegistry()
	require.NoError(t, registry.Register(widgetSchema()))

	gadget := widgetSchema()
	gadget.EntityType = "Gadget"
	require.NoError(t, registry.Register(gadget))

	assert.Equal(t, []generic.EntityType{"Gadget", "Widget"}, registry.EntityTypes())
	require.Len(t, registry.Schemas(), 2)
	assert.Equal(t, generic.EntityType("Gadget"), registry.Schemas()[0].EntityType)

	s, err := registry.Lookup(widget)
	require.NoError(t, err)
	assert.Equal(t, fStatus, s.StatusField)

	_, err = registry.Lookup("Sprocket")
	assert.ErrorIs(t, err, generic.ErrInvalidEntityType)
}

func TestSchema_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*generic.Schema)
	}{
		{"no entity type", func(s *generic.Schema) { s.EntityType = "" }},
		{"no status field", func(s *generic.Schema) { s.StatusField = "" }},
		{"percentage without completed status", func(s *generic.Schema) { s.CompletedStatus = "" }},
		{"completed status outside enum", func(s *generic.Schema) { s.CompletedStatus = "Finished" }},
		{"default out of range", func(s *generic.Schema) { s.StatusDefaults["Building"] = generic.Fixed(140) }},
		{"unknown mode", func(s *generic.Schema) { s.StatusDefaults["Building"] = generic.StatusDefault{Mode: "sometimes"} }},
		{"date rule kind", func(s *generic.Schema) { s.DateRules[0].Kind = "birthday" }},
		{"offset without target", func(s *generic.Schema) { s.OffsetRules[0].Target = "" }},
		{"score without percentage", func(s *generic.Schema) { s.PercentageField = ""; s.CompletedStatus = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := widgetSchema()
			tt.mutate(&s)

			err := generic.NewRegistry().Register(s)

			assert.ErrorIs(t, err, generic.ErrInvalidSchema)
		})
	}
}

func TestSchema_Band(t *testing.T) {
	s := generic.Schema{Bands: []generic.Band{{Min: 0, Color: "red"}, {Min: 75, Color: "green"}}}

	assert.Equal(t, "green", s.Band(75))
	assert.Equal(t, "red", s.Band(74))
	assert.Equal(t, "", generic.Schema{}.Band(50))
}
