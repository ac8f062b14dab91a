package generator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"

	"github.com/complizen/hardgen/internal/core"
	"github.com/complizen/hardgen/pkgs/fcrypt"
)

func setupConfig(t *testing.T, dir, content string) *core.Config {
	t.Helper()

	path := filepath.Join(dir, "hardening.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config fixture: %v", err)
	}

	cfg, err := core.Load(path)
	if err != nil {
		t.Fatalf("failed to load config fixture: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("failed to validate config fixture: %v", err)
	}

	return cfg
}

func TestEngine_Render_ScenarioDisableCups(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, `policies:
  - name: Disable cups
    services: [cups]
`)
	writeTemplate(t, dir, "linux", "CIS",
		"{{ range .config.policies }}{{ range .services }}systemctl disable {{ . }}\n{{ end }}{{ end }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}

	if got := string(data); got != "systemctl disable cups\n" {
		t.Errorf("Render() output = %q, want exactly one disable line", got)
	}
}

func TestEngine_Render_EchoesConfigField(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\nbanner: Authorized use only\n")
	writeTemplate(t, dir, "linux", "CIS", "{{ .config.banner }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "Authorized use only" {
		t.Errorf("Render() output = %q, want verbatim banner", string(data))
	}
}

func TestEngine_Render_Idempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, `policies:
  - name: Disable atd
    services: [atd, cups]
`)
	writeTemplate(t, dir, "linux", "CIS",
		"#!/bin/bash\n{{ range .config.policies }}# {{ .name }}\n{{ range .services }}systemctl disable {{ . }}\n{{ end }}{{ end }}")

	out := filepath.Join(dir, "harden.sh")
	req := Request{Platform: "linux", Standard: "CIS", OutputFile: out}
	eng := NewEngine(cfg)

	if err := eng.Render(context.Background(), req); err != nil {
		t.Fatalf("Render() first run error: %v", err)
	}
	first, _ := os.ReadFile(out)

	if err := eng.Render(context.Background(), req); err != nil {
		t.Fatalf("Render() second run error: %v", err)
	}
	second, _ := os.ReadFile(out)

	if !bytes.Equal(first, second) {
		t.Error("Render() produced different output across identical runs")
	}
}

func TestEngine_Render_OverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\n")
	writeTemplate(t, dir, "linux", "CIS", "fresh content")

	out := filepath.Join(dir, "harden.sh")
	if err := os.WriteFile(out, []byte("stale content that is much longer"), 0o644); err != nil {
		t.Fatalf("failed to seed output file: %v", err)
	}

	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "fresh content" {
		t.Errorf("Render() output = %q, want full overwrite", string(data))
	}
}

func TestEngine_Render_PolicyWhenFiltering(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, `policies:
  - name: linux only
    when: platform == "linux"
    services: [cups]
  - name: windows only
    when: platform == "windows"
    services: [spooler]
`)
	writeTemplate(t, dir, "linux", "CIS",
		"{{ range .config.policies }}{{ .name }}\n{{ end }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	got := string(data)
	if !strings.Contains(got, "linux only") {
		t.Errorf("Render() output %q missing matching policy", got)
	}
	if strings.Contains(got, "windows only") {
		t.Errorf("Render() output %q contains filtered policy", got)
	}
}

func TestEngine_Render_VarsPrecedence(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"a.yaml": "greeting: from-a\n",
		"b.yaml": "greeting: from-b\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write vars fixture: %v", err)
		}
	}

	cfg := setupConfig(t, dir, `policies: []
vars:
  greeting: from-inline
  owner: inline
var_files:
  - path: a.yaml
  - path: b.yaml
  - path: missing.yaml
`)
	writeTemplate(t, dir, "linux", "CIS", "{{ .vars.greeting }} {{ .vars.owner }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "from-b inline" {
		t.Errorf("Render() output = %q, want later var files to win", string(data))
	}
}

func TestEngine_Render_VaultVarFile(t *testing.T) {
	dir := t.TempDir()

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatalf("failed to generate identity: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "key.txt"), []byte(identity.String()+"\n"), 0o600); err != nil {
		t.Fatalf("failed to write identity file: %v", err)
	}

	var encrypted bytes.Buffer
	err = fcrypt.EncryptReader(strings.NewReader("admin_password: hunter2\n"), &encrypted, identity.Recipient())
	if err != nil {
		t.Fatalf("failed to encrypt vars fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml.age"), encrypted.Bytes(), 0o644); err != nil {
		t.Fatalf("failed to write vault fixture: %v", err)
	}

	cfg := setupConfig(t, dir, `policies: []
age:
  identity_file: key.txt
var_files:
  - path: secrets.yaml
    vault: true
`)
	writeTemplate(t, dir, "linux", "CIS", "{{ .vars.admin_password }}")

	out := filepath.Join(dir, "harden.sh")
	err = NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "hunter2" {
		t.Errorf("Render() output = %q, want decrypted secret", string(data))
	}
}

func TestEngine_Render_SprigFunctions(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\n")
	writeTemplate(t, dir, "linux", "CIS", "{{ upper .platform }}-{{ .standard }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "LINUX-CIS" {
		t.Errorf("Render() output = %q, want sprig upper applied", string(data))
	}
}

func TestEngine_Render_RenderError(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\nbanner: hello\n")
	// Iterating a scalar is a shape mismatch the engine reports at render time.
	writeTemplate(t, dir, "linux", "CIS", "{{ range .config.banner }}x{{ end }}")

	out := filepath.Join(dir, "harden.sh")
	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: out,
	})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("Render() error = %v, want %v", err, ErrRender)
	}

	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("Render() touched the output file despite a render failure")
	}
}

func TestEngine_Render_StrictMissingKey(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\nstrict: true\n")
	writeTemplate(t, dir, "linux", "CIS", "{{ .config.nonexistent }}")

	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: filepath.Join(dir, "harden.sh"),
	})
	if !errors.Is(err, ErrRender) {
		t.Fatalf("Render() error = %v, want %v", err, ErrRender)
	}
}

func TestEngine_Render_OutputWriteError(t *testing.T) {
	dir := t.TempDir()
	cfg := setupConfig(t, dir, "policies: []\n")
	writeTemplate(t, dir, "linux", "CIS", "content")

	// Parent of the output path is a regular file, so the directory
	// cannot be created.
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file"), 0o644); err != nil {
		t.Fatalf("failed to write blocker: %v", err)
	}

	err := NewEngine(cfg).Render(context.Background(), Request{
		Platform:   "linux",
		Standard:   "CIS",
		OutputFile: filepath.Join(blocker, "harden.sh"),
	})
	if !errors.Is(err, ErrOutputWrite) {
		t.Fatalf("Render() error = %v, want %v", err, ErrOutputWrite)
	}
}
