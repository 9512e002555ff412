package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// promptSecurityCode asks for the code printed on the bottom of the gateway.
func promptSecurityCode() (string, error) {
	var code string

	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Gateway security code").
			Description("Printed on the label on the bottom of the gateway. Only needed once.").
			EchoMode(huh.EchoModePassword).
			Value(&code).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("security code is required")
				}
				return nil
			}),
	)).Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(code), nil
}
