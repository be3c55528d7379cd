// Package content renders the informational pages (home, company, contact,
// grading guide) from embedded markdown.
package content

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

//go:embed pages/*.md
var pagesFS embed.FS

// Page names.
const (
	Home    = "home"
	Company = "company"
	Contact = "contact"
	Grading = "grading"
)

// Names lists the pages in navigation order.
var Names = []string{Home, Company, Contact, Grading}

// ErrNotFound is returned for an unknown page name.
var ErrNotFound = errors.New("page not found")

// Page is one rendered page.
type Page struct {
	Name  string
	Title string
	Body  template.HTML
}

var layout = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Page.Title}} | EduInsight Analytics</title>
</head>
<body>
<nav>{{range .Nav}}<a href="/pages/{{.}}">{{.}}</a> {{end}}</nav>
<main>
{{.Page.Body}}
</main>
<footer>EduInsight Analytics</footer>
</body>
</html>
`))

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// toHTML converts markdown. A parser is single use, so one is built per call.
func toHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, r)
}

// Markdown returns the source of the named page.
func Markdown(name string) ([]byte, error) {
	data, err := pagesFS.ReadFile("pages/" + name + ".md")
	if err != nil {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return data, nil
}

// Render converts the named page to HTML. The title is its first level-one
// heading.
func Render(name string) (*Page, error) {
	md, err := Markdown(name)
	if err != nil {
		return nil, err
	}
	title := name
	if m := headingRe.FindSubmatch(md); m != nil {
		title = strings.TrimSpace(string(m[1]))
	}
	return &Page{
		Name:  name,
		Title: title,
		// 埋め込みの markdown のみを扱う
		Body: template.HTML(toHTML(md)),
	}, nil
}

// WriteDocument writes the page wrapped in the site layout.
func (p *Page) WriteDocument(w io.Writer) error {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, struct {
		Page *Page
		Nav  []string
	}{p, Names}); err != nil {
		return errors.Wrap(err, "render layout")
	}
	_, err := buf.WriteTo(w)
	return err
}
