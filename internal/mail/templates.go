package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates
var templateFS embed.FS

type kind string

const (
	kindVerification  kind = "verification"
	kindPasswordReset kind = "password_reset"
	kindDecision      kind = "decision"
)

type renderer struct {
	html map[kind]*htmltemplate.Template
	text map[kind]*texttemplate.Template
}

func newRenderer() (*renderer, error) {
	r := &renderer{
		html: make(map[kind]*htmltemplate.Template),
		text: make(map[kind]*texttemplate.Template),
	}

	for _, k := range []kind{kindVerification, kindPasswordReset, kindDecision} {
		h, err := htmltemplate.ParseFS(templateFS, "templates/layout.html", fmt.Sprintf("templates/%s.html", k))
		if err != nil {
			return nil, fmt.Errorf("parse %s html template: %w", k, err)
		}
		t, err := texttemplate.ParseFS(templateFS, fmt.Sprintf("templates/%s.txt", k))
		if err != nil {
			return nil, fmt.Errorf("parse %s text template: %w", k, err)
		}
		r.html[k] = h
		r.text[k] = t
	}
	return r, nil
}

func (r *renderer) render(k kind, data any) (html, text string, err error) {
	var hb, tb bytes.Buffer
	if err := r.html[k].ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", err
	}
	if err := r.text[k].Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
