package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	t.Run("Nil metadata is stored as empty object", func(t *testing.T) {
		var m Metadata

		value, err := m.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte("{}"), value)
	})

	t.Run("Source is encoded as JSON", func(t *testing.T) {
		value, err := Metadata{"source": "about.pdf"}.Value()
		require.NoError(t, err)
		assert.JSONEq(t, `{"source":"about.pdf"}`, string(value.([]byte)))
	})
}

func TestMetadataScan(t *testing.T) {
	tests := []struct {
		name     string
		value    interface{}
		expected Metadata
	}{
		{name: "Scan nil", value: nil, expected: Metadata{}},
		{name: "Scan JSONB bytes", value: []byte(`{"source":"a.pdf"}`), expected: Metadata{"source": "a.pdf"}},
		{name: "Scan SQLite text", value: `{"source":"b.pdf","pages":2}`, expected: Metadata{"source": "b.pdf", "pages": float64(2)}},
		{name: "Scan empty bytes", value: []byte{}, expected: Metadata{}},
		{name: "Scan Metadata", value: Metadata{"k": "v"}, expected: Metadata{"k": "v"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var m Metadata
			err := m.Scan(test.value)
			require.NoError(t, err, "Expected Scan to not return an error")
			assert.Equal(t, test.expected, m)
		})
	}

	t.Run("Scan invalid JSON returns an error", func(t *testing.T) {
		var m Metadata
		err := m.Scan([]byte("{invalid"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "metadata unmarshal")
	})

	t.Run("Scan unsupported type returns an error", func(t *testing.T) {
		var m Metadata
		err := m.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type int")
	})
}

func TestMetadataString(t *testing.T) {
	m := Metadata{"source": "about.pdf", "pages": 3}

	assert.Equal(t, "about.pdf", m.String("source"))
	assert.Equal(t, "", m.String("pages"), "Expected non-string value to be empty")
	assert.Equal(t, "", m.String("missing"))
}
