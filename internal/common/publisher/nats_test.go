package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptvtracker-planner/internal/planner"
)

func TestSubjectToken(t *testing.T) {
	tests := map[string]string{
		"zip:1718000000-2048": "zip_1718000000-2048",
		" db 12 ":             "db_12",
		"a.b>c*d/e":           "a_b_c_d_e",
		"":                    "_",
	}
	for in, want := range tests {
		assert.Equal(t, want, subjectToken(in), in)
	}
}

func TestEncodeEvent(t *testing.T) {
	ev := planner.GraphPublished{
		BuildID:     "b-1",
		Version:     "db:7",
		BuiltAt:     time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC),
		Stops:       3,
		Connections: 2,
	}

	subject, body, err := encodeEvent("planner.graph.published", ev)
	require.NoError(t, err)
	assert.Equal(t, "planner.graph.published.db_7", subject)

	var back planner.GraphPublished
	require.NoError(t, json.Unmarshal(body, &back))
	assert.Equal(t, ev, back)
}
