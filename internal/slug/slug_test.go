package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"punctuation stripped", "Breast Cancer: Myths & Facts!", "breast-cancer-myths-facts"},
		{"lowercased", "Hello World", "hello-world"},
		{"whitespace runs collapse", "too   many\t\tspaces", "too-many-spaces"},
		{"existing hyphens kept", "already-slugged", "already-slugged"},
		{"repeated hyphens collapse", "a -- b", "a-b"},
		{"leading and trailing trimmed", "  padded  ", "padded"},
		{"digits kept", "Top 10 Tips", "top-10-tips"},
		{"only whitespace", "   ", ""},
		{"only punctuation", "!!!???", ""},
		{"empty", "", ""},
		{"non-ascii stripped", "Café Über", "caf-ber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestWithSuffix(t *testing.T) {
	a := WithSuffix("press-release", "doc-1")
	b := WithSuffix("press-release", "doc-1")
	c := WithSuffix("press-release", "doc-2")

	assert.Equal(t, a, b, "suffix must be stable across runs")
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^press-release-[0-9a-f]{6}$`, a)
}

func TestNormalize(t *testing.T) {
	raw := "<p>keep me</p><script>alert(1)</script>\n<style>p{}</style>"

	got := Normalize(raw)
	assert.Equal(t, "<p>keep me</p>", got)
	assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
}

func TestNormalize_SplicedTags(t *testing.T) {
	// Removing the inner block splices the remainder into a fresh
	// script element; stripping has to keep going until nothing is left.
	raw := "<<script>x</script>script>alert(1)</script>"

	got := Normalize(raw)
	assert.Equal(t, "", got)
	assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
}

func TestNormalize_PassThrough(t *testing.T) {
	assert.Equal(t, "plain markdown **text**", Normalize("plain markdown **text**"))
}
