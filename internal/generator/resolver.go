package generator

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/rs/zerolog/log"
)

// Template layout contract: templates/<platform>/<standard>.tmpl, resolved
// relative to the configuration file's directory. New platform or standard
// coverage is purely a new template file, never a code change.
const (
	TemplateRoot = "templates"
	TemplateExt  = ".tmpl"
)

// TemplatePath composes the relative lookup path for a platform and
// compliance standard pair. Both identifiers are used verbatim.
func TemplatePath(platform, standard string) string {
	return filepath.Join(TemplateRoot, platform, standard+TemplateExt)
}

// Template is a parsed hardening script template together with its source,
// which is kept for error reporting.
type Template struct {
	Path   string
	Source string

	tmpl *template.Template
}

func (t *Template) Execute(w io.Writer, data any) error {
	return t.tmpl.Execute(w, data)
}

// ResolveTemplate loads and parses the template for (platform, standard)
// from the template root under dir. Sprig's function set is available to
// every template; strict templates additionally fail on missing keys.
func ResolveTemplate(dir, platform, standard string, strict bool) (*Template, error) {
	rel := TemplatePath(platform, standard)
	path := filepath.Join(dir, rel)

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, rel)
	case err != nil:
		return nil, fmt.Errorf("%w %s: %w", ErrTemplateLoad, rel, err)
	}

	tmpl := template.New(filepath.Base(path)).Funcs(sprig.TxtFuncMap())
	if strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err = tmpl.Parse(string(data))
	if err != nil {
		return nil, NewTemplateError(ErrTemplateLoad, rel, string(data), err)
	}

	log.Info().Str("template", rel).Msg("template loaded")

	return &Template{
		Path:   rel,
		Source: string(data),
		tmpl:   tmpl,
	}, nil
}
