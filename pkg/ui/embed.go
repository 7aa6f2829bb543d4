// Package ui provides the embedded gallery page.
package ui

import (
	_ "embed"
	"html/template"
	"io"
	"net/url"
	"strconv"
)

//go:embed gallery.html
var galleryHTML string

var gallery = template.Must(template.New("gallery").Funcs(template.FuncMap{
	"pageURL": PageURL,
}).Parse(galleryHTML))

// PageURL returns the gallery link for page of the search term.
func PageURL(term string, page int) string {
	q := url.Values{}
	if term != "" {
		q.Set("term", term)
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/"
	}
	return "/?" + q.Encode()
}

// RenderGallery writes the gallery page for data, a *service.GalleryPage.
func RenderGallery(w io.Writer, data any) error {
	return gallery.Execute(w, data)
}
