package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompt asks for the API key on the terminal with masked input.
func Prompt(system, account string) (string, error) {
	var secret string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("API key for %s", account)).
				Description(fmt.Sprintf("Stored in the system keyring under %s", Key(system, account))).
				EchoMode(huh.EchoModePassword).
				Value(&secret).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("an API key is required")
					}
					return nil
				}),
		),
	)

	if err := form.Run(); err != nil {
		return "", fmt.Errorf("prompting for %s credential: %w", system, err)
	}

	return strings.TrimSpace(secret), nil
}
