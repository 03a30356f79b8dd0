package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/imark/internal/marking"
	"github.com/kingrea/imark/internal/scheme"
)

func labResult() marking.Result {
	compiles := scheme.Criterion{Prompt: "Compiles"}
	style := scheme.Criterion{Prompt: "Style"}
	return marking.Result{
		Total: scheme.WholePoints(2),
		Max:   scheme.WholePoints(3),
		Selections: []marking.Selection{
			{CriterionIndex: 0, Criterion: compiles, Choice: scheme.Choice{Label: "yes", Points: scheme.WholePoints(2)}},
			{CriterionIndex: 1, Criterion: style, ChoiceIndex: 1, Choice: scheme.Choice{Label: "bad", Points: 0}},
		},
	}
}

func TestNewCopiesTrailInOrder(t *testing.T) {
	r := New(Meta{Course: "cs1511", Session: "23T3"}, labResult())
	_, err := uuid.Parse(r.RunID)
	require.NoError(t, err)
	require.False(t, r.CompletedAt.IsZero())
	require.Equal(t, []Entry{
		{Criterion: "Compiles", Choice: "yes", Points: scheme.WholePoints(2)},
		{Criterion: "Style", Choice: "bad", Points: 0},
	}, r.Selections)
	require.NotEqual(t, r.RunID, New(Meta{}, labResult()).RunID)
}

func TestWriteYAML(t *testing.T) {
	r := New(Meta{Scheme: "lab03.yaml", Course: "cs1511", Session: "23T3", Endpoint: "https://example.edu/"}, labResult())
	var buf bytes.Buffer
	require.NoError(t, r.WriteYAML(&buf))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "cs1511", decoded["course"])
	require.Equal(t, "lab03.yaml", decoded["scheme"])
	require.Equal(t, 2, decoded["total"])
	require.Equal(t, 3, decoded["max"])
	sels, ok := decoded["selections"].([]any)
	require.True(t, ok)
	require.Len(t, sels, 2)
	first := sels[0].(map[string]any)
	require.Equal(t, "Compiles", first["criterion"])
	require.Equal(t, "yes", first["choice"])
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "marks.yaml")
	r := New(Meta{}, labResult())
	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "run_id: "+r.RunID)
}

func TestSummary(t *testing.T) {
	r := New(Meta{Course: "cs1511", Session: "23T3"}, labResult())
	out := r.Summary()
	require.Contains(t, out, "Compiles")
	require.Contains(t, out, "bad (0)")
	require.Contains(t, out, "Total: 2 / 3")
	require.Contains(t, out, r.RunID)
}
