// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch indicates a password and its confirmation didn't match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password prompts for a masked password input.
func Password(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	return p.Run()
}

// PasswordWithValidation prompts for a password with a minimum length.
func PasswordWithValidation(label string, minLength int) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	return p.Run()
}

// PasswordWithConfirmation prompts for a new password and a confirmation,
// returning ErrPasswordMismatch if they differ.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	password, err := PasswordWithValidation(label, minLength)
	if err != nil {
		return "", err
	}
	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}
