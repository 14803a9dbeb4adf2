package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagevault/imagevault/internal/store"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want Compiled
	}{
		{
			name: "bare token is full text",
			in:   []string{"sunset"},
			want: Compiled{Filter: store.Filter{fullTextClause("sunset")}},
		},
		{
			name: "filename prefix",
			in:   []string{"filename:beach"},
			want: Compiled{Filter: store.Filter{{
				Any: []store.Match{{Field: store.FieldFilename, Substring: "beach"}},
			}}},
		},
		{
			name: "tag name or value",
			in:   []string{"tag:canon"},
			want: Compiled{Filter: store.Filter{{
				Any: []store.Match{
					{Field: store.FieldTagName, Substring: "canon"},
					{Field: store.FieldTagValue, Substring: "canon"},
				},
			}}},
		},
		{
			name: "tag name and value pair",
			in:   []string{"tag:Make:Canon"},
			want: Compiled{Filter: store.Filter{{
				Tag: &store.TagPair{Name: "Make", Value: "Canon"},
			}}},
		},
		{
			name: "exif is an alias for tag",
			in:   []string{"exif:Model:EOS"},
			want: Compiled{Filter: store.Filter{{
				Tag: &store.TagPair{Name: "Model", Value: "EOS"},
			}}},
		},
		{
			name: "all prefix",
			in:   []string{"all:dog"},
			want: Compiled{Filter: store.Filter{fullTextClause("dog")}},
		},
		{
			name: "similar contributes no clause",
			in:   []string{"similar:/ref.png"},
			want: Compiled{ReferencePath: "/ref.png", HasReference: true},
		},
		{
			name: "last similar wins",
			in:   []string{"similar:/a.png", "similar:/b.png"},
			want: Compiled{ReferencePath: "/b.png", HasReference: true},
		},
		{
			name: "unknown prefix is a plain term",
			in:   []string{"http://example.com"},
			want: Compiled{Filter: store.Filter{fullTextClause("http://example.com")}},
		},
		{
			name: "tokens combine",
			in:   []string{"beach", "filename:jpg", "similar:/ref.png"},
			want: Compiled{
				Filter: store.Filter{
					fullTextClause("beach"),
					{Any: []store.Match{{Field: store.FieldFilename, Substring: "jpg"}}},
				},
				ReferencePath: "/ref.png",
				HasReference:  true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compile(tt.in)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_EmptyTokens(t *testing.T) {
	got := Compile(nil)
	require.Empty(t, got.Filter)
	assert.False(t, got.HasReference)
}
