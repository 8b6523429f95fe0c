package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "mg2dsn"

// EnvAPIKey overrides the keyring when set, for non-interactive runs.
const EnvAPIKey = "MG2DSN_API_KEY"

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mg2dsn/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mg2dsn-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Key returns the keyring key a secret for account on system is filed
// under, e.g. "api.mailgun.net/mg.example.com".
func Key(system, account string) string {
	return system + "/" + account
}

// PromptFunc asks the operator for a missing secret.
type PromptFunc func(system, account string) (string, error)

// Provider yields and forgets the secret for an account of an external
// system.
type Provider interface {
	Resolve(system, account string) (string, error)
	Forget(system, account string) error
}

var _ Provider = (*KeyringProvider)(nil)

// KeyringProvider resolves secrets from the environment, then the system
// keyring, prompting and storing on first use.
type KeyringProvider struct {
	open   func() (keyring.Keyring, error)
	prompt PromptFunc
	getenv func(string) string
}

// NewKeyringProvider creates a provider backed by the system keyring.
// A nil prompt makes a missing secret an error.
func NewKeyringProvider(prompt PromptFunc) *KeyringProvider {
	return &KeyringProvider{
		open:   openKeyring,
		prompt: prompt,
		getenv: os.Getenv,
	}
}

// Resolve returns the secret for account on system.
func (p *KeyringProvider) Resolve(system, account string) (string, error) {
	if v := strings.TrimSpace(p.getenv(EnvAPIKey)); v != "" {
		return v, nil
	}

	ring, err := p.open()
	if err != nil {
		return "", err
	}

	key := Key(system, account)
	item, err := ring.Get(key)
	if err == nil {
		return string(item.Data), nil
	}
	if !errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	if p.prompt == nil {
		return "", fmt.Errorf("no credential stored for %q", key)
	}

	secret, err := p.prompt(system, account)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("empty credential for %q", key)
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(secret),
		Label: fmt.Sprintf("%s API key for %s", system, account),
	})
	if err != nil {
		return "", fmt.Errorf("setting credential %q: %w", key, err)
	}

	return secret, nil
}

// Forget removes the stored secret for account on system. Removing a
// secret that was never stored is not an error.
func (p *KeyringProvider) Forget(system, account string) error {
	ring, err := p.open()
	if err != nil {
		return err
	}

	key := Key(system, account)
	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
