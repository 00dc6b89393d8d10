package guard

import "github.com/microcosm-cc/bluemonday"

var htmlPolicy = buildHTMLPolicy()

func buildHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u", "s", "code", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "blockquote",
		"table", "thead", "tbody", "tr", "th", "td",
		"hr", "div", "span",
	)
	p.AllowAttrs("href", "title", "target", "rel").OnElements("a")
	p.AllowElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowElements("img")
	p.AllowAttrs("class", "id").Globally()
	return p
}

// SanitizeHTML strips everything outside a small formatting whitelist from
// snippet HTML before it is stored or rendered.
func SanitizeHTML(content string) string {
	if content == "" {
		return ""
	}
	return htmlPolicy.Sanitize(content)
}
