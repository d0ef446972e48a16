package service

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/request-desk/internal/domain"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

type templateSpec struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

type compiledTemplate struct {
	title *template.Template
	body  *template.Template
}

// Templates renders notification text per notification type.
type Templates struct {
	byType map[domain.NotificationType]compiledTemplate
}

// RenderedMessage is the text produced for one notification.
type RenderedMessage struct {
	Title string
	Body  string
}

// TemplateData is the context available to templates.
type TemplateData struct {
	Title    string
	Status   domain.TicketStatus
	Priority domain.TicketPriority
	WorkType domain.WorkType
	Deadline string
	Late     bool
	Link     string
	Reason   string
	Author   string
	Comment  string
}

// DefaultTemplates parses the embedded template set.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(defaultTemplatesYAML)
}

// ParseTemplates compiles a YAML document mapping notification types to
// title and body templates.
func ParseTemplates(raw []byte) (*Templates, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	t := &Templates{byType: make(map[domain.NotificationType]compiledTemplate, len(specs))}
	for name, spec := range specs {
		title, err := template.New(name + ".title").Option("missingkey=zero").Parse(spec.Title)
		if err != nil {
			return nil, fmt.Errorf("template %s title: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=zero").Parse(spec.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		t.byType[domain.NotificationType(name)] = compiledTemplate{title: title, body: body}
	}
	return t, nil
}

// Render selects the template for typ and executes it.
func (t *Templates) Render(typ domain.NotificationType, data TemplateData) (RenderedMessage, error) {
	tpl, ok := t.byType[typ]
	if !ok {
		return RenderedMessage{}, fmt.Errorf("no template for notification type %q", typ)
	}
	var title, body strings.Builder
	if err := tpl.title.Execute(&title, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("render %s title: %w", typ, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return RenderedMessage{}, fmt.Errorf("render %s body: %w", typ, err)
	}
	return RenderedMessage{
		Title: strings.TrimSpace(title.String()),
		Body:  strings.TrimSpace(body.String()),
	}, nil
}
