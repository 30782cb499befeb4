// Package templates renders the quickplan HTML pages and htmx fragments from
// templates embedded in the binary.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"regexp"
	"strings"
)

//go:embed html/*.html
var files embed.FS

// 页面模板名。
const (
	PageHome     = "home"
	PageAbout    = "about"
	PagePlan     = "plan"
	PageNotFound = "not_found"
)

// 片段模板名。
const (
	FragmentCalendar    = "calendar"
	FragmentUserCreated = "user_created"
)

var (
	pageNames = []string{PageHome, PageAbout, PagePlan, PageNotFound}
	partials  = []string{"layout.html", "calendar.html", "user_created.html"}

	commentPattern = regexp.MustCompile(`<!--([\s\S]*?)-->`)
)

// Options 控制模板的加载方式。
type Options struct {
	// Minify 在解析前去掉 HTML 注释，发布模式下开启。
	Minify bool
}

// Renderer 持有解析好的模板，可并发使用。
type Renderer struct {
	pages     map[string]*template.Template
	fragments *template.Template
}

// StripComments 删除所有 <!-- --> 注释。
func StripComments(src []byte) []byte {
	return commentPattern.ReplaceAll(src, nil)
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"weekdays": func() []string {
		return []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	},
}

// New 解析全部模板。
func New(opts Options) (*Renderer, error) {
	read := func(name string) (string, error) {
		data, err := fs.ReadFile(files, "html/"+name)
		if err != nil {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
		if opts.Minify {
			data = StripComments(data)
		}
		return string(data), nil
	}

	base := template.New("base").Funcs(funcs)
	for _, name := range partials {
		src, err := read(name)
		if err != nil {
			return nil, err
		}
		if _, err := base.New(name).Parse(src); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, page := range pageNames {
		src, err := read(page + ".html")
		if err != nil {
			return nil, err
		}
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base templates: %w", err)
		}
		if _, err := clone.New(page + ".html").Parse(src); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		r.pages[page] = clone
	}
	r.fragments = base
	return r, nil
}

// RenderPage 渲染完整页面，出错时不会写出半个页面。
func (r *Renderer) RenderPage(w io.Writer, page string, data any) error {
	tmpl, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return execute(w, tmpl, "layout", data)
}

// RenderFragment 渲染 htmx 片段。
func (r *Renderer) RenderFragment(w io.Writer, name string, data any) error {
	return execute(w, r.fragments, name, data)
}

func execute(w io.Writer, tmpl *template.Template, name string, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
