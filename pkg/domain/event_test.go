package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("start", "work", map[string]any{"value": 21})

	from, to, ok := ev.Discriminator()
	require.True(t, ok)
	require.Equal(t, "start", from)
	require.Equal(t, "work", to)
	require.Equal(t, 21, ev["value"])
	require.False(t, ev.IsError())
}

func TestNewEventOverwritesReservedField(t *testing.T) {
	ev := NewEvent("a", "b", map[string]any{"id": "bogus", "x": 1})
	from, to, ok := ev.Discriminator()
	require.True(t, ok)
	require.Equal(t, "a", from)
	require.Equal(t, "b", to)
}

func TestDiscriminatorForms(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		ok   bool
	}{
		{"any slice", Event{"id": []any{"a", "b"}}, true},
		{"string slice", Event{"id": []string{"a", "b"}}, true},
		{"array", Event{"id": [2]string{"a", "b"}}, true},
		{"missing", Event{}, false},
		{"wrong length", Event{"id": []any{"a"}}, false},
		{"wrong types", Event{"id": []any{1, 2}}, false},
		{"error string", Event{"id": "error"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, ok := tc.ev.Discriminator()
			if ok != tc.ok {
				t.Errorf("Discriminator() ok = %v, want %v", ok, tc.ok)
			}
		})
	}
}

func TestDiscriminatorSurvivesJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(NewEvent("start", "work", map[string]any{"value": 1}))
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(data, &decoded))

	from, to, ok := decoded.Discriminator()
	require.True(t, ok)
	require.Equal(t, "start", from)
	require.Equal(t, "work", to)
}

func TestErrorEvent(t *testing.T) {
	ev := NewErrorEvent("work", "something broke")
	require.True(t, ev.IsError())
	require.Equal(t, "something broke", ev[ErrorDetailField])

	_, _, ok := ev.Discriminator()
	require.False(t, ok)
}

func TestRetagKeepsPayload(t *testing.T) {
	ev := NewEvent("work", "end", map[string]any{"value": 42})
	retagged := ev.Retag("start", "other")

	from, to, ok := retagged.Discriminator()
	require.True(t, ok)
	require.Equal(t, "start", from)
	require.Equal(t, "other", to)
	require.Equal(t, 42, retagged["value"])

	// Original unchanged.
	from, to, _ = ev.Discriminator()
	require.Equal(t, "work", from)
	require.Equal(t, "end", to)
}

func TestPayloadStripsDiscriminator(t *testing.T) {
	ev := NewEvent("a", "b", map[string]any{"x": 1, "y": 2})
	require.Equal(t, map[string]any{"x": 1, "y": 2}, ev.Payload())
}
