package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"github.com/complizen/hardgen/pkgs/fcrypt"
)

var (
	// ErrConfigNotFound reports a configuration path that does not resolve
	// to a readable file.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrConfigParse reports a configuration document that is not
	// well-formed YAML.
	ErrConfigParse = errors.New("failed to parse configuration")

	// ErrConfigShape reports a configuration whose top-level value is not
	// a mapping.
	ErrConfigShape = errors.New("invalid configuration format, expected a mapping")
)

// Config is the loaded policy document. Tree is the document exactly as
// parsed and is what templates traverse; Settings is the typed slice of it
// that the generator itself reads. Unrecognized top-level keys survive in
// Tree untouched.
type Config struct {
	Tree     any
	Dir      string
	Settings Settings

	raw []byte
}

// Settings are the recognized top-level configuration keys.
type Settings struct {
	Policies []map[string]any `yaml:"policies"`
	Vars     map[string]any   `yaml:"vars"`
	VarFiles []VarFile        `yaml:"var_files"`
	Age      Age              `yaml:"age"`
	Strict   bool             `yaml:"strict"`
}

// VarFile names a YAML document whose top-level mapping is merged into the
// template variables. Vault files are age-encrypted.
type VarFile struct {
	Path    string `yaml:"path"`
	IsVault bool   `yaml:"vault"`
}

type Age struct {
	IdentityFile string `yaml:"identity_file"`
}

// ReadIdentity loads the age identity used to decrypt vault var files,
// skipping comments and blank lines in the identity file.
func (a Age) ReadIdentity() (age.Identity, error) {
	identityData, err := os.ReadFile(a.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity file %s: %w", a.IdentityFile, err)
	}

	var keyLine string
	for _, line := range strings.Split(string(identityData), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			keyLine = line
			break
		}
	}

	if keyLine == "" {
		return nil, fmt.Errorf("no valid key found in identity file %s", a.IdentityFile)
	}

	identity, err := fcrypt.LoadPrivateKey(keyLine)
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	return identity, nil
}

// Load reads and parses the policy configuration at path. Relative paths
// inside the document resolve against the configuration file's directory.
func Load(path string) (*Config, error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigNotFound, path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigNotFound, path, err)
	}

	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfigParse, err)
	}

	log.Info().Str("path", path).Msg("configuration loaded")

	return &Config{
		Tree: tree,
		Dir:  filepath.Dir(absolutePath),
		raw:  data,
	}, nil
}

// Validate performs the shallow structural check: the top-level value must
// be a mapping. A missing policies key is a warning, not an error, because
// templates are free to ignore policies entirely.
func (c *Config) Validate() error {
	root, ok := c.Tree.(map[string]any)
	if !ok {
		return fmt.Errorf("%w, got %T", ErrConfigShape, c.Tree)
	}

	if _, ok := root["policies"]; !ok {
		log.Warn().Msg("no 'policies' key found in the configuration, some rules may be missed")
	}

	if err := yaml.Unmarshal(c.raw, &c.Settings); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigShape, err)
	}

	log.Info().Int("policies", len(c.Settings.Policies)).Msg("configuration validated")

	return nil
}

// Resolve turns a config-relative or '~'-prefixed path into an absolute one.
func (c *Config) Resolve(ip string) (string, error) {
	if strings.HasPrefix(ip, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		ip = filepath.Join(homeDir, strings.TrimPrefix(ip, "~"))
	}

	if filepath.IsAbs(ip) {
		return filepath.Clean(ip), nil
	}

	if c.Dir != "" {
		return filepath.Join(c.Dir, ip), nil
	}

	absPath, err := filepath.Abs(ip)
	if err != nil {
		return "", err
	}

	return absPath, nil
}
