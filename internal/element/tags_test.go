package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTags(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"comma string", "b, a,,b ", []string{"a", "b"}},
		{"string slice", []string{"z", "a", "z"}, []string{"a", "z"}},
		{"any slice", []any{"x", " y"}, []string{"x", "y"}},
		{"empty string", "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeTags(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeTags_NFC(t *testing.T) {
	// Decomposed and precomposed forms collapse to one tag.
	got, err := NormalizeTags([]string{"e\u0301", "\u00e9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"\u00e9"}, got)
}

func TestNormalizeTags_RejectsNonStrings(t *testing.T) {
	_, err := NormalizeTags([]any{"ok", 3})
	assert.True(t, IsValidation(err))
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeTags([]string{"c", "a"}, []string{"b", "a"}))
}
