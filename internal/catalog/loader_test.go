package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalogJSON = `{
  "workflows": {
    "warranty_claim": [
      {
        "name": "ORDER_STATUS",
        "description": "Validate the order is within warranty.",
        "required_tools": ["order_status_tool"],
        "input_fields": ["order_id"]
      },
      {
        "name": "SUPPORT",
        "description": "Open a warranty claim ticket.",
        "required_tools": ["support_tool"],
        "requires_confirmation": true,
        "input_fields": ["user_id", "description"]
      }
    ]
  },
  "aliases": {"warranty": "warranty_claim"}
}`

func TestParse_ValidCatalog(t *testing.T) {
	c, err := Parse([]byte(validCatalogJSON))
	require.NoError(t, err)

	wf := c.Sequence("warranty_claim")
	require.Len(t, wf, 2)
	assert.Equal(t, "ORDER_STATUS", wf[0].Name)
	assert.True(t, wf[1].RequiresConfirmation)

	// File aliases extend the defaults.
	assert.Equal(t, []string{"ORDER_STATUS", "SUPPORT"}, stepNames(c.Sequence("warranty")))
	assert.Equal(t, "track_order", c.Normalize("order_status"))

	// Builtin intents survive the merge.
	assert.Len(t, c.Sequence("purchase"), 7)
}

func TestParse_RejectsInvalidJSON(t *testing.T) {
	_, err := Parse([]byte("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing workflows", `{"aliases": {}}`},
		{"empty step list", `{"workflows": {"x": []}}`},
		{"step without description", `{"workflows": {"x": [{"name": "A"}]}}`},
		{"unknown step field", `{"workflows": {"x": [{"name": "A", "description": "d", "budget": 3}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "schema validation")
		})
	}
}

func TestParse_RejectsDuplicateStepNames(t *testing.T) {
	doc := `{"workflows": {"x": [
	  {"name": "A", "description": "first"},
	  {"name": "A", "description": "again"}
	]}}`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(validCatalogJSON), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Sequence("warranty_claim"), 2)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
