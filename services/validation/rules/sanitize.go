// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"fmt"
)

// Sanitizer normalizes a raw check result into a CheckOutcome.
type Sanitizer interface {
	// Sanitize returns the outcome or a *MalformedResultError.
	Sanitize(raw any) (CheckOutcome, error)
}

// SanitizerFunc adapts a function to the Sanitizer interface.
type SanitizerFunc func(raw any) (CheckOutcome, error)

// Sanitize calls f(raw).
func (f SanitizerFunc) Sanitize(raw any) (CheckOutcome, error) {
	return f(raw)
}

// DefaultSanitizer accepts the result shapes produced by Go and
// command-backed checks.
//
// Description:
//
//	Recognized shapes:
//	  - CheckOutcome and *CheckOutcome
//	  - OutcomeProvider implementations
//	  - map[string]any with "is_valid" (bool) and "errors" keys, where
//	    errors is nil, []ErrorItem, []map[string]any or []any of maps
//
//	Error item maps use "id", "name" and optional "type". Any other keys
//	are kept in ErrorItem.Extra.
//
// Thread Safety:
//
//	DefaultSanitizer is stateless and safe for concurrent use.
type DefaultSanitizer struct{}

// Sanitize implements Sanitizer.
func (DefaultSanitizer) Sanitize(raw any) (CheckOutcome, error) {
	switch v := raw.(type) {
	case nil:
		return CheckOutcome{}, &MalformedResultError{Reason: "check returned no result"}
	case CheckOutcome:
		return v, nil
	case *CheckOutcome:
		if v == nil {
			return CheckOutcome{}, &MalformedResultError{Reason: "check returned nil outcome"}
		}
		return *v, nil
	case OutcomeProvider:
		return v.CheckOutcome()
	case map[string]any:
		return sanitizeMap(v)
	default:
		return CheckOutcome{}, &MalformedResultError{
			Reason: fmt.Sprintf("unsupported result type %T", raw),
		}
	}
}

func sanitizeMap(m map[string]any) (CheckOutcome, error) {
	rawValid, ok := m["is_valid"]
	if !ok {
		return CheckOutcome{}, &MalformedResultError{Reason: "result missing key 'is_valid'"}
	}
	rawErrors, ok := m["errors"]
	if !ok {
		return CheckOutcome{}, &MalformedResultError{Reason: "result missing key 'errors'"}
	}

	isValid, ok := rawValid.(bool)
	if !ok {
		return CheckOutcome{}, &MalformedResultError{
			Reason: fmt.Sprintf("'is_valid' must be bool, got %T", rawValid),
		}
	}

	items, err := sanitizeItems(rawErrors)
	if err != nil {
		return CheckOutcome{}, err
	}
	return CheckOutcome{IsValid: isValid, Errors: items}, nil
}

func sanitizeItems(raw any) ([]ErrorItem, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []ErrorItem:
		return v, nil
	case []map[string]any:
		items := make([]ErrorItem, 0, len(v))
		for _, m := range v {
			items = append(items, itemFromMap(m))
		}
		return items, nil
	case []any:
		items := make([]ErrorItem, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]any)
			if !ok {
				return nil, &MalformedResultError{
					Reason: fmt.Sprintf("error item %d must be an object, got %T", i, elem),
				}
			}
			items = append(items, itemFromMap(m))
		}
		return items, nil
	default:
		return nil, &MalformedResultError{
			Reason: fmt.Sprintf("'errors' must be a list, got %T", raw),
		}
	}
}

func itemFromMap(m map[string]any) ErrorItem {
	item := ErrorItem{}
	for k, v := range m {
		switch k {
		case "id":
			item.ID = fmt.Sprint(v)
		case "name":
			item.Name = fmt.Sprint(v)
		case "type":
			item.Type = fmt.Sprint(v)
		default:
			if item.Extra == nil {
				item.Extra = make(map[string]any)
			}
			item.Extra[k] = v
		}
	}
	return item
}
