package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"moviedbproxy/config"
)

// runConfigure walks through the proxy block of the settings file, validates
// the answers and saves them.
func runConfigure(m *config.Manager) error {
	settings, err := m.Load()
	if err != nil {
		return err
	}
	p := settings.Proxy

	types := []string{"None", config.ProxyTypeHTTP, config.ProxyTypeSOCKS4, config.ProxyTypeSOCKS5}
	cursor := 0
	for i, t := range types {
		if t == config.NormalizeProxyType(p.ProxyType) {
			cursor = i
		}
	}
	sel := promptui.Select{
		Label:     "Proxy type",
		Items:     types,
		CursorPos: cursor,
	}
	idx, _, err := sel.Run()
	if err != nil {
		return promptError(err)
	}

	if idx == 0 {
		p.Enable = false
		p.ProxyType = config.ProxyTypeNone
	} else {
		p.Enable = true
		p.ProxyType = types[idx]

		if p.ProxyURL, err = ask("Proxy host", p.ProxyURL, required); err != nil {
			return err
		}
		port, err := ask("Proxy port", portDefault(p.ProxyPort), validPort)
		if err != nil {
			return err
		}
		p.ProxyPort, _ = strconv.Atoi(port)

		if p.EnableCredentials, err = confirm("Use credentials"); err != nil {
			return err
		}
		if p.EnableCredentials {
			if p.Login, err = ask("Login", p.Login, required); err != nil {
				return err
			}
			pw := promptui.Prompt{Label: "Password", Mask: '*', Validate: required}
			if p.Password, err = pw.Run(); err != nil {
				return promptError(err)
			}
		}
		if p.EnableDebugLog, err = confirm("Enable proxy debug logging"); err != nil {
			return err
		}
	}

	settings.Proxy = p
	saved, err := m.Update(settings)
	if err != nil {
		return err
	}
	if addr := saved.Proxy.Address(); addr != "" {
		fmt.Printf("Saved proxy %s to %s\n", addr, m.Path())
	} else {
		fmt.Printf("Proxy disabled in %s\n", m.Path())
	}
	return nil
}

func ask(label, def string, validate promptui.ValidateFunc) (string, error) {
	prompt := promptui.Prompt{Label: label, Default: def, Validate: validate}
	v, err := prompt.Run()
	if err != nil {
		return "", promptError(err)
	}
	return strings.TrimSpace(v), nil
}

func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, promptError(err)
	}
	return true, nil
}

func promptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return errors.New("aborted")
	}
	return err
}

func portDefault(port int) string {
	if port <= 0 {
		return ""
	}
	return strconv.Itoa(port)
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value required")
	}
	return nil
}

func validPort(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 65535 {
		return errors.New("port must be between 1 and 65535")
	}
	return nil
}
