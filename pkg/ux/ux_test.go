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
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersonalityLevel(t *testing.T) {
	tests := map[string]PersonalityLevel{
		"standard": PersonalityStandard,
		"min":      PersonalityMinimal,
		"Minimal":  PersonalityMinimal,
		"machine":  PersonalityMachine,
		"q":        PersonalityMachine,
		"bogus":    PersonalityStandard,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePersonalityLevel(in), in)
	}
}

func TestSetPersonality(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	SetPersonality(Personality{Level: PersonalityMinimal})
	assert.Equal(t, PersonalityMinimal, GetPersonality().Level)

	SetPersonalityLevel(PersonalityMachine)
	assert.Equal(t, PersonalityMachine, GetPersonality().Level)
}

func TestInitPersonality_Env(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)

	t.Setenv(EnvPersonality, "minimal")
	InitPersonality()
	assert.Equal(t, PersonalityMinimal, GetPersonality().Level)
}

func TestIsTerminal_Nil(t *testing.T) {
	assert.False(t, IsTerminal(nil))
}

func TestConfirmer_NonInteractive(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	ok, err := Confirmer(true)(context.Background(), "Fetch?", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Confirmer(false)(context.Background(), "Fetch?", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func printer(level PersonalityLevel) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewPrinter(&buf).WithLevel(level), &buf
}

func TestPrinter_Machine(t *testing.T) {
	p, buf := printer(PersonalityMachine)
	assert.True(t, p.Machine())

	p.Title("Validation")
	p.Muted("hidden")
	p.StatusLine(IconSuccess, "schema", "")
	p.StatusLine(IconError, "dupes", "3 errors")
	p.Detail("Found errors.")
	p.Warning("careful")
	p.Error("broken")
	p.Summary(Count{Label: "Valid", Value: 1}, Count{Label: "Invalid", Value: 1})

	assert.Equal(t,
		"OK\tschema\t\n"+
			"FAIL\tdupes\t3 errors\n"+
			"\tFound errors.\n"+
			"WARN: careful\n"+
			"FAIL: broken\n"+
			"SUMMARY: valid=1 invalid=1\n",
		buf.String())
}

func TestPrinter_Minimal(t *testing.T) {
	p, buf := printer(PersonalityMinimal)
	assert.False(t, p.Machine())

	p.Title("Validation")
	p.StatusLine(IconError, "dupes", "3 errors")
	p.StatusLine(IconPending, "review", "")
	p.Detail("Found errors.")
	p.Success("done")
	p.Box("Cycle", "a -> b -> a", true)
	p.Summary(Count{Label: "valid", Value: 2})

	assert.Equal(t,
		"Validation\n"+
			"✗ dupes (3 errors)\n"+
			"○ review\n"+
			"    Found errors.\n"+
			"✓ done\n"+
			"Cycle: a -> b -> a\n"+
			"\n2 valid\n",
		buf.String())
}

func TestPrinter_Standard(t *testing.T) {
	p, buf := printer(PersonalityStandard)

	p.Title("Validation")
	p.StatusLine(IconSuccess, "schema", "Schema")
	p.Detail("detail")
	p.Box("Cycle", "a -> b -> a", true)
	p.Box("Info", "content", false)
	p.Summary(Count{Label: "valid", Value: 2, Icon: IconSuccess}, Count{Label: "total", Value: 3})

	out := buf.String()
	assert.Contains(t, out, "Validation")
	assert.Contains(t, out, "schema")
	assert.Contains(t, out, "(Schema)")
	assert.Contains(t, out, "detail")
	assert.Contains(t, out, "a -> b -> a")
	assert.Contains(t, out, "valid")
	assert.Contains(t, out, "total")
}

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconPending, IconArrow, IconBullet} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}
