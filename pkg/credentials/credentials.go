// Package credentials stores the secrets the forum bridge needs (the
// completion service API key and the SMTP password) outside config.toml.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Jeremmmyyyyy/forum-rest-api/pkg/dotdir"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0

	envPrefix = "FORUM_"
)

// Known secret names.
const (
	LLMAPIKey      = "llm_api_key"
	MailerPassword = "mailer_password"
)

// Manager reads and writes credentials.toml in the .forum/ directory.
type Manager struct {
	targetPath string
}

// NewManager resolves credentials.toml inside override, or inside the
// standard .forum/ directory when override is empty.
func NewManager(override string) (*Manager, error) {
	path, err := dotdir.NewManager().File(override, credentialsFile)
	if err != nil {
		return nil, err
	}
	return &Manager{targetPath: path}, nil
}

// Load reads credentials.toml from the target directory.
// Returns an empty Credentials if the file does not exist.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{
				Version: currentVersion,
				Secrets: make(map[string]Secret),
			}, nil
		}
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	creds := &Credentials{}
	if err := toml.Unmarshal(data, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	if creds.Secrets == nil {
		creds.Secrets = make(map[string]Secret)
	}

	return creds, nil
}

// Save writes credentials to credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// Set stores a secret under name.
func (m *Manager) Set(name, value string) error {
	if !IsSupportedSecret(name) {
		return fmt.Errorf("unknown secret: %q (supported: %s)", name, strings.Join(SupportedSecrets(), ", "))
	}

	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Secrets[name] = Secret{Value: value}

	return m.Save(creds)
}

// Get returns the stored value for name, ignoring the environment.
// Returns an empty string if nothing is stored.
func (m *Manager) Get(name string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}

	return creds.Secrets[name].Value, nil
}

// Resolve returns the secret for name, preferring its environment variable
// (see EnvVar) over the stored value.
func (m *Manager) Resolve(name string) (string, error) {
	if v := os.Getenv(EnvVar(name)); v != "" {
		return v, nil
	}
	return m.Get(name)
}

// Remove deletes the stored secret.
func (m *Manager) Remove(name string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Secrets, name)

	return m.Save(creds)
}

// List returns the names of stored secrets.
func (m *Manager) List() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Secrets))
	for name := range creds.Secrets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// EnvVar returns the environment variable that overrides the named secret,
// e.g. FORUM_LLM_API_KEY.
func EnvVar(name string) string {
	return envPrefix + strings.ToUpper(name)
}

// SupportedSecrets returns the names accepted by Set.
func SupportedSecrets() []string {
	return []string{LLMAPIKey, MailerPassword}
}

// IsSupportedSecret returns true if name is a supported secret.
func IsSupportedSecret(name string) bool {
	return slices.Contains(SupportedSecrets(), name)
}
