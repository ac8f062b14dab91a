package generator

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"github.com/complizen/hardgen/internal/core"
	"github.com/complizen/hardgen/pkgs/fcrypt"
)

// Engine renders hardening scripts from a loaded configuration. Variables
// are loaded once on first render and reused after that.
type Engine struct {
	cfg  *core.Config
	vars map[string]any
}

func NewEngine(cfg *core.Config) *Engine {
	return &Engine{cfg: cfg}
}

// Request describes a single render: which template to select and where
// the rendered script is written.
type Request struct {
	Platform   string
	Standard   string
	OutputFile string
}

// Render selects the template for the request, evaluates it against the
// configuration tree, and writes the result to the output file. The
// template sees a single binding with the keys config, vars, platform and
// standard.
func (e *Engine) Render(ctx context.Context, req Request) error {
	if e.vars == nil {
		if err := e.preloadVars(); err != nil {
			return fmt.Errorf("failed to preload vars: %w", err)
		}
	}

	if err := e.cfg.FilterPolicies(req.Platform, req.Standard, e.vars); err != nil {
		return err
	}

	tmpl, err := ResolveTemplate(e.cfg.Dir, req.Platform, req.Standard, e.cfg.Settings.Strict)
	if err != nil {
		return err
	}

	data := map[string]any{
		"config":   e.cfg.Tree,
		"vars":     e.vars,
		"platform": req.Platform,
		"standard": req.Standard,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return NewTemplateError(ErrRender, tmpl.Path, tmpl.Source, err)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputFile), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	if err := os.WriteFile(req.OutputFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	log.Info().
		Str("template", tmpl.Path).
		Str("output", req.OutputFile).
		Msg("script generated")

	return nil
}

// preloadVars merges the configured variable sources in precedence order:
// inline vars, then var files in declaration order, later sources winning.
func (e *Engine) preloadVars() error {
	vars := map[string]any{}
	maps.Copy(vars, e.cfg.Settings.Vars)

	var identity age.Identity
	if e.cfg.Settings.Age.IdentityFile != "" {
		path, err := e.cfg.Resolve(e.cfg.Settings.Age.IdentityFile)
		if err != nil {
			return err
		}

		identity, err = core.Age{IdentityFile: path}.ReadIdentity()
		if err != nil {
			log.Warn().Err(err).Msg("failed to load identity file")
		}
	}

	for _, vf := range e.cfg.Settings.VarFiles {
		fileVars, err := e.loadVarsFile(vf, identity)
		if err != nil {
			return fmt.Errorf("failed to load vars file %s: %w", vf.Path, err)
		}

		maps.Copy(vars, fileVars)
	}

	e.vars = vars
	return nil
}

func (e *Engine) loadVarsFile(vf core.VarFile, identity age.Identity) (map[string]any, error) {
	path, err := e.cfg.Resolve(vf.Path)
	if err != nil {
		return nil, err
	}

	// Vault files are age-encrypted and expected to carry a .age extension.
	if vf.IsVault {
		if filepath.Ext(path) != ".age" {
			path = path + ".age"
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("vault file does not exist, skipping")
			return nil, nil
		}

		if identity == nil {
			return nil, fmt.Errorf("no identity loaded for encrypted file %s", path)
		}

		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		buff := bytes.NewBuffer([]byte{})
		if err := fcrypt.DecryptReader(file, buff, identity); err != nil {
			return nil, err
		}

		vars := map[string]any{}
		if err := yaml.Unmarshal(buff.Bytes(), &vars); err != nil {
			return nil, err
		}

		return vars, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Str("path", path).Msg("vars file does not exist, skipping")
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{}
	if err := yaml.Unmarshal(data, &vars); err != nil {
		return nil, err
	}

	return vars, nil
}
