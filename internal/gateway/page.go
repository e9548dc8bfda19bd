package gateway

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/Masterminds/sprig"
	"github.com/flemzord/aether/internal/chat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/page.html
var templateFS embed.FS

// pageData is the template input.
type pageData struct {
	Title string
	View  chat.View

	// Error is shown as a bubble after the history.
	Error string

	// Draft refills the message box after a failed submission.
	Draft string
}

type pageRenderer struct {
	title string
	tmpl  *template.Template
	md    goldmark.Markdown
}

func newPageRenderer(title string) (*pageRenderer, error) {
	p := &pageRenderer{
		title: title,
		// Raw HTML in replies is dropped: goldmark escapes it unless
		// html.WithUnsafe is set.
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}

	funcs := sprig.FuncMap()
	funcs["markdown"] = p.markdown
	tmpl, err := template.New("page.html").Funcs(funcs).ParseFS(templateFS, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("gateway: parsing page template: %w", err)
	}
	p.tmpl = tmpl
	return p, nil
}

// markdown renders assistant content. Output is trusted because goldmark
// never passes raw HTML through in its default mode.
func (p *pageRenderer) markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src)) //nolint:gosec // escaped
	}
	return template.HTML(buf.String()) //nolint:gosec // goldmark omits raw HTML
}

func (p *pageRenderer) render(w io.Writer, view chat.View, errMsg, draft string) error {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, pageData{Title: p.title, View: view, Error: errMsg, Draft: draft}); err != nil {
		return fmt.Errorf("gateway: rendering page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
