
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"bookmark-cataloger/internal/models"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

var (
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)
	titleRe      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescRe   = regexp.MustCompile(`(?i)<meta[^>]+name=["']?description["']?[^>]*>`)
	ogDescRe     = regexp.MustCompile(`(?i)<meta[^>]+property=["']?og:description["']?[^>]*>`)
	contentRe    = regexp.MustCompile(`(?is)content=["'](.*?)["']`)
)

// Extract decodes body to UTF-8 using the content type and any <meta charset>
// hint, then pulls title and description. It never fails: undecodable or
// malformed input yields empty fields.
func (p *Parser) Extract(body []byte, contentType string) models.PageMeta {
	enc, _, _ := charset.DetermineEncoding(body, contentType)
	utf8data, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		// fallback: keep the raw bytes
		utf8data = body
	}
	if !utf8.Valid(utf8data) {
		utf8data = []byte(strings.ToValidUTF8(string(utf8data), ""))
	}
	return ExtractMeta(string(utf8data))
}

// ExtractMeta matches <title> and the description meta tags in raw HTML.
func ExtractMeta(html string) models.PageMeta {
	var title string
	if m := titleRe.FindStringSubmatch(html); m != nil {
		title = m[1]
	}
	desc := matchContent(html, metaDescRe)
	if desc == "" {
		desc = matchContent(html, ogDescRe)
	}
	return models.PageMeta{
		Title:       cleanupText(title),
		Description: cleanupText(desc),
	}
}

// matchContent finds the first tag matching tagRe and returns its content
// attribute. Attribute order inside the tag does not matter.
func matchContent(html string, tagRe *regexp.Regexp) string {
	tag := tagRe.FindString(html)
	if tag == "" {
		return ""
	}
	m := contentRe.FindStringSubmatch(tag)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanupText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
