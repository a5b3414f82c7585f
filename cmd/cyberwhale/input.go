// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// promptPassword prints prompt to w and reads a password from the terminal
// without echo.
func promptPassword(w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	_, _ = fmt.Fprintln(w)
	if err != nil {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	return string(pw), nil
}
