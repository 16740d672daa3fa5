package scraper

import (
	"errors"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoTitle marks an item that has no usable title and is skipped.
var ErrNoTitle = errors.New("item has no title")

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Text returns the normalised text content of sel.
func Text(sel *goquery.Selection) string {
	return NormaliseText(sel.Text())
}

// AbsoluteURL resolves href against base. Absolute hrefs are returned as-is.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}
