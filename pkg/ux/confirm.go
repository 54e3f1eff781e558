// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
)

// ConfirmFunc asks a yes/no question.
type ConfirmFunc func(ctx context.Context, title, description string) (bool, error)

// PromptConfirm asks the question with an interactive huh form.
//
// Description:
//
//	Aborting the form with ctrl-c counts as "no". Other form errors are
//	returned.
func PromptConfirm(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	err := huh.NewForm(huh.NewGroup(confirm)).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Confirmer returns PromptConfirm when the session is interactive, and a
// function that always answers fallback otherwise.
func Confirmer(fallback bool) ConfirmFunc {
	if IsInteractive() {
		return PromptConfirm
	}
	return func(context.Context, string, string) (bool, error) {
		return fallback, nil
	}
}
