package analyzer

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/urlscan/internal/config"
)

// Page is the part of a response the analyzer looks at.
type Page struct {
	Body        []byte
	Header      http.Header
	ContentType string
}

// Analysis is the result of analyzing a page.
type Analysis struct {
	// Title is the first <title> text, or "" when there is none.
	Title string

	// Components are the detected component labels. Never nil.
	Components []string

	// Generator is the <meta name="generator"> content.
	Generator string

	// Scripts are the <script src> references in document order.
	Scripts []string
}

// Analyzer extracts titles and components. It is safe for concurrent use
// once constructed.
type Analyzer struct {
	registry *Registry
	logger   *slog.Logger

	// rules from the config file, registered once all options ran.
	rules []config.RuleConfig
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRegistry replaces the default rule registry.
func WithRegistry(r *Registry) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithRules appends rules from the config file after the registry's own
// rules.
func WithRules(rules []config.RuleConfig) Option {
	return func(a *Analyzer) {
		a.rules = append(a.rules, rules...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Analyzer using DefaultRegistry unless WithRegistry is
// given.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		registry: DefaultRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, rc := range a.rules {
		a.registry.Register(RuleFromConfig(rc))
	}
	return a
}

// Analyze inspects a body without headers.
func (a *Analyzer) Analyze(body []byte) Analysis {
	return a.AnalyzePage(Page{Body: body})
}

// AnalyzePage inspects a full page.
func (a *Analyzer) AnalyzePage(p Page) Analysis {
	header := p.Header
	if header == nil {
		header = http.Header{}
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = header.Get("Content-Type")
	}

	text := ""
	if len(p.Body) > 0 {
		text = decode(p.Body, contentType)
	}
	doc := parseDocument(text)

	scripts := doc.scripts
	if scripts == nil {
		scripts = []string{}
	}

	components := a.registry.Evaluate(&Signals{
		Header:    header,
		Generator: doc.generator,
		Scripts:   scripts,
		LowerBody: strings.ToLower(doc.text),
	})

	a.logger.Debug("page analyzed",
		"title", doc.title,
		"components", len(components),
		"scripts", len(scripts),
	)

	return Analysis{
		Title:      doc.title,
		Components: components,
		Generator:  doc.generator,
		Scripts:    scripts,
	}
}
