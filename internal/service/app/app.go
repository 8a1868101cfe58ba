// Package app is the terminal client for the backup-code vault. All
// cryptography happens here: codes are generated and encrypted locally,
// and retrieved envelopes are decrypted locally. The server never sees a
// password or a plaintext code.
package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"backup_vault/internal/codec"
)

type (
	App struct {
		app    *tview.Application
		form   *tview.Form
		output *tview.TextView

		host      string
		codeCount int
	}
)

func NewApp(host string, codeCount int) *App {
	return &App{
		app:       tview.NewApplication(),
		host:      host,
		codeCount: codeCount,
	}
}

// Run blocks until the user quits.
func (c *App) Run() error {
	c.output = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.output.SetBorder(true).SetTitle(" Output ")

	c.form = tview.NewForm().
		AddInputField("Username", "", 30, nil, nil).
		AddPasswordField("Password", "", 30, '*', nil).
		AddButton("Register", c.onRegister).
		AddButton("Retrieve", c.onRetrieve).
		AddButton("Reset", c.onReset).
		AddButton("Quit", func() { c.app.Stop() })
	c.form.SetBorder(true).SetTitle(" 2FA Backup-Code Vault ")

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.form, 11, 0, true).
		AddItem(c.output, 0, 1, false)

	return c.app.SetRoot(layout, true).SetFocus(c.form).Run()
}

func (c *App) credentials() (username, password string, err error) {
	username = strings.TrimSpace(c.form.GetFormItem(0).(*tview.InputField).GetText())
	password = c.form.GetFormItem(1).(*tview.InputField).GetText()

	if len(username) < 3 {
		return "", "", fmt.Errorf("username must be at least 3 characters")
	}
	if len(password) < 8 {
		return "", "", fmt.Errorf("password must be at least 8 characters")
	}
	return username, password, nil
}

func (c *App) onRegister() {
	username, password, err := c.credentials()
	if err != nil {
		c.printf("[red]%v", err)
		return
	}

	go func() {
		codes, err := codec.GenerateCodes(c.codeCount)
		if err != nil {
			c.printAsync("[red]generate codes: %v", err)
			return
		}

		envelopes := make([]string, 0, len(codes))
		for _, code := range codes {
			envelope, err := codec.Encrypt(code, password)
			if err != nil {
				c.printAsync("[red]encrypt code: %v", err)
				return
			}
			envelopes = append(envelopes, envelope)
		}

		if err := c.register(username, envelopes); err != nil {
			c.printAsync("[red]%v", err)
			return
		}

		c.printAsync("[green]Registered %s with %d codes. Save these now, they are shown once:", username, len(codes))
		for i, code := range codes {
			c.printAsync("  %2d. %s", i+1, code)
		}
	}()
}

func (c *App) onRetrieve() {
	username, password, err := c.credentials()
	if err != nil {
		c.printf("[red]%v", err)
		return
	}

	go func() {
		result, err := c.retrieve(username)
		if err != nil {
			c.printAsync("[red]%v", err)
			return
		}

		code, err := codec.Decrypt(result.EncryptedCode, password)
		if errors.Is(err, codec.ErrDecryption) || errors.Is(err, codec.ErrMalformed) {
			// The envelope is spent either way; warn loudly.
			c.printAsync("[red]Could not decrypt the code (wrong password or corrupted data). %d code(s) remain.", result.CodesRemaining)
			return
		}
		if err != nil {
			c.printAsync("[red]%v", err)
			return
		}

		c.printAsync("[green]Backup code: [white]%s[green]  (%d of %d remaining)",
			code, result.CodesRemaining, result.TotalCodes)
	}()
}

func (c *App) onReset() {
	username := strings.TrimSpace(c.form.GetFormItem(0).(*tview.InputField).GetText())
	if len(username) < 3 {
		c.printf("[red]username must be at least 3 characters")
		return
	}

	go func() {
		if err := c.reset(username); err != nil {
			c.printAsync("[red]%v", err)
			return
		}
		c.printAsync("[green]Account %s deleted.", username)
	}()
}

func (c *App) printf(format string, args ...any) {
	fmt.Fprintf(c.output, format+"\n", args...)
}

// printAsync is printf for goroutines off the UI loop.
func (c *App) printAsync(format string, args ...any) {
	c.app.QueueUpdateDraw(func() {
		c.printf(format, args...)
	})
}
