package mockserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeImageHTML(t *testing.T) {
	got := composeImageHTML(CreativeSpec{
		ImageURL: "https://cdn.example.com/a.png?x=1&y=2",
		Alt:      `"quoted"`,
		Width:    320,
		Height:   50,
		Images: []ImageVariant{
			{URL: "https://cdn.example.com/a.png", Width: 320},
			{URL: "https://cdn.example.com/a@2x.png", Width: 640},
			{URL: "https://cdn.example.com/nowidth.png"},
		},
	})
	assert.Equal(t, `<img src="https://cdn.example.com/a.png?x=1&amp;y=2" alt="&#34;quoted&#34;" width="320" height="50" `+
		`srcset="https://cdn.example.com/a.png 320w, https://cdn.example.com/a@2x.png 640w" `+
		`style="max-width:100%;height:auto;display:block;">`, got)
}

func TestComposeImageHTMLFallbacks(t *testing.T) {
	assert.Empty(t, composeImageHTML(CreativeSpec{}))

	got := composeImageHTML(CreativeSpec{Images: []ImageVariant{{URL: "https://cdn.example.com/b.png"}}})
	assert.Contains(t, got, `src="https://cdn.example.com/b.png"`)
	assert.Contains(t, got, `alt="Advertisement"`)
	assert.NotContains(t, got, "srcset")
	assert.NotContains(t, got, "width=")
}

func TestCreativeModelComposesImageHTML(t *testing.T) {
	inv, err := DefaultInventory()
	require.NoError(t, err)

	item, ok := inv.FindAd("ad-sports-us")
	require.True(t, ok)
	cr, err := item.Creative.Model()
	require.NoError(t, err)
	assert.Contains(t, cr.HTML, `alt="Sports scores live"`)
	assert.Contains(t, cr.HTML, "sports-640x100.png 640w")

	generic, ok := inv.FindAd("ad-banner-generic")
	require.True(t, ok)
	cr, err = generic.Creative.Model()
	require.NoError(t, err)
	assert.Equal(t, generic.Creative.HTML, cr.HTML, "explicit markup is kept")
}
