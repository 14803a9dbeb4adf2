package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/imagevault/imagevault/internal/errors"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain words", "abc def", []string{"abc", "def"}},
		{"collapses whitespace", "  abc \t def  ", []string{"abc", "def"}},
		{"quoted span keeps spaces", `abc "def ghi"`, []string{"abc", "def ghi"}},
		{"quote mid-token", `tag:artist:"jane doe"`, []string{"tag:artist:jane doe"}},
		{"escaped space", `a\ b c`, []string{"a b", "c"}},
		{"escaped quote", `say\"hi`, []string{`say"hi`}},
		{"escape inside quotes", `"a\"b"`, []string{`a"b`}},
		{"empty quoted token", `""`, []string{""}},
		{"empty input", "", nil},
		{"only whitespace", "   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenize_Malformed(t *testing.T) {
	for _, in := range []string{`abc "unterminated`, `"`, `trailing\`, `\`} {
		_, err := Tokenize(in)
		require.Error(t, err, in)
		assert.True(t, verrors.IsMalformedQuery(err), in)
	}
}
