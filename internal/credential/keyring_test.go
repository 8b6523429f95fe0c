package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(ring keyring.Keyring, prompt PromptFunc, env map[string]string) *KeyringProvider {
	return &KeyringProvider{
		open:   func() (keyring.Keyring, error) { return ring, nil },
		prompt: prompt,
		getenv: func(k string) string { return env[k] },
	}
}

func TestKeyringProvider_ReturnsStoredSecret(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "api.mailgun.net/mg.example.com", Data: []byte("key-123")},
	})
	p := newTestProvider(ring, func(string, string) (string, error) {
		t.Fatal("prompt must not be called when a secret is stored")
		return "", nil
	}, nil)

	secret, err := p.Resolve("api.mailgun.net", "mg.example.com")
	require.NoError(t, err)
	assert.Equal(t, "key-123", secret)
}

func TestKeyringProvider_PromptsAndPersists(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	prompts := 0
	p := newTestProvider(ring, func(system, account string) (string, error) {
		prompts++
		assert.Equal(t, "api.mailgun.net", system)
		assert.Equal(t, "mg.example.com", account)
		return "fresh-key", nil
	}, nil)

	secret, err := p.Resolve("api.mailgun.net", "mg.example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh-key", secret)

	item, err := ring.Get("api.mailgun.net/mg.example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh-key", string(item.Data))

	secret, err = p.Resolve("api.mailgun.net", "mg.example.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh-key", secret)
	assert.Equal(t, 1, prompts)
}

func TestKeyringProvider_EnvironmentOverride(t *testing.T) {
	p := newTestProvider(keyring.NewArrayKeyring(nil), nil, map[string]string{EnvAPIKey: " env-key "})

	secret, err := p.Resolve("api.mailgun.net", "mg.example.com")
	require.NoError(t, err)
	assert.Equal(t, "env-key", secret)
}

func TestKeyringProvider_MissingWithoutPrompt(t *testing.T) {
	p := newTestProvider(keyring.NewArrayKeyring(nil), nil, nil)

	_, err := p.Resolve("api.mailgun.net", "mg.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credential stored")
}

func TestKeyringProvider_PromptError(t *testing.T) {
	p := newTestProvider(keyring.NewArrayKeyring(nil), func(string, string) (string, error) {
		return "", errors.New("user aborted")
	}, nil)

	_, err := p.Resolve("api.mailgun.net", "mg.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user aborted")
}

func TestKeyringProvider_Forget(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{
		{Key: "api.mailgun.net/mg.example.com", Data: []byte("key-123")},
	})
	p := newTestProvider(ring, nil, nil)

	require.NoError(t, p.Forget("api.mailgun.net", "mg.example.com"))
	_, err := ring.Get("api.mailgun.net/mg.example.com")
	assert.ErrorIs(t, err, keyring.ErrKeyNotFound)

	require.NoError(t, p.Forget("api.mailgun.net", "mg.example.com"))
}
