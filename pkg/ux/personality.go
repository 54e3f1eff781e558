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
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// EnvPersonality names the environment variable overriding the output level.
const EnvPersonality = "DATAVALIDATE_PERSONALITY"

// PersonalityLevel defines the richness of CLI output.
type PersonalityLevel string

const (
	// PersonalityStandard enables colors, icons, and boxes.
	PersonalityStandard PersonalityLevel = "standard"

	// PersonalityMinimal uses icons without color.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine outputs tab-separated plain text for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

// Personality holds the current output configuration.
type Personality struct {
	Level PersonalityLevel
}

var (
	currentPersonality = DefaultPersonality()
	personalityMu      sync.RWMutex
)

// GetPersonality returns the current personality settings.
func GetPersonality() Personality {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentPersonality
}

// SetPersonality updates the current personality settings.
func SetPersonality(p Personality) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality = p
}

// SetPersonalityLevel updates just the personality level.
func SetPersonalityLevel(level PersonalityLevel) {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	currentPersonality.Level = level
}

// ParsePersonalityLevel converts a string to a PersonalityLevel. Unknown
// values map to standard.
func ParsePersonalityLevel(s string) PersonalityLevel {
	switch strings.ToLower(s) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityStandard
	}
}

// InitPersonality sets the level from DATAVALIDATE_PERSONALITY, falling
// back to machine output when stdout is not a terminal.
func InitPersonality() {
	if envLevel := os.Getenv(EnvPersonality); envLevel != "" {
		SetPersonalityLevel(ParsePersonalityLevel(envLevel))
		return
	}
	if !IsTerminal(os.Stdout) {
		SetPersonalityLevel(PersonalityMachine)
		return
	}
	SetPersonalityLevel(PersonalityStandard)
}

// IsTerminal reports whether f is a terminal, including Cygwin ptys.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInteractive reports whether prompts may be shown: both stdin and
// stdout are terminals and output is not in machine mode.
func IsInteractive() bool {
	return GetPersonality().Level != PersonalityMachine && IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// DefaultPersonality returns the default personality settings.
func DefaultPersonality() Personality {
	return Personality{Level: PersonalityStandard}
}
