package mockserver

import (
	"fmt"
	"html"
	"strings"
)

// ImageVariant is a responsive image alternative for image creatives.
type ImageVariant struct {
	URL    string `yaml:"url"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// composeImageHTML builds ready-to-render markup for an image creative so
// clients can show it without assembling the tag themselves. It returns ""
// when there is no image to show.
func composeImageHTML(c CreativeSpec) string {
	src := c.ImageURL
	if src == "" && len(c.Images) > 0 {
		src = c.Images[0].URL
	}
	if src == "" {
		return ""
	}

	alt := c.Alt
	if alt == "" {
		alt = "Advertisement"
	}
	parts := []string{
		fmt.Sprintf(`src="%s"`, html.EscapeString(src)),
		fmt.Sprintf(`alt="%s"`, html.EscapeString(alt)),
	}
	if c.Width > 0 && c.Height > 0 {
		parts = append(parts, fmt.Sprintf(`width="%d" height="%d"`, c.Width, c.Height))
	}

	var srcset []string
	for _, img := range c.Images {
		if img.URL != "" && img.Width > 0 {
			srcset = append(srcset, fmt.Sprintf("%s %dw", html.EscapeString(img.URL), img.Width))
		}
	}
	if len(srcset) > 0 {
		parts = append(parts, fmt.Sprintf(`srcset="%s"`, strings.Join(srcset, ", ")))
	}
	parts = append(parts, `style="max-width:100%;height:auto;display:block;"`)

	return fmt.Sprintf("<img %s>", strings.Join(parts, " "))
}
