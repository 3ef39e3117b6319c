// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package network

import "errors"

var (
	// ErrInvalidCharacter indicates a character without id or name.
	ErrInvalidCharacter = errors.New("invalid character")

	// ErrInvalidRelationship indicates a relationship missing an endpoint
	// or carrying an unknown enum value.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrSelfRelationship indicates a relationship whose source equals its target.
	ErrSelfRelationship = errors.New("relationship source equals target")

	// ErrStrengthOutOfRange indicates a strength outside [0, 10].
	ErrStrengthOutOfRange = errors.New("strength out of range [0,10]")

	// ErrInvalidConflict indicates a conflict carrying an unknown enum value.
	ErrInvalidConflict = errors.New("invalid conflict")

	// ErrNoInvolvedCharacters indicates a conflict with an empty involvement list.
	ErrNoInvolvedCharacters = errors.New("conflict has no involved characters")

	// ErrConflictNotFound indicates a phase update for an unknown conflict id.
	ErrConflictNotFound = errors.New("conflict not found")
)
