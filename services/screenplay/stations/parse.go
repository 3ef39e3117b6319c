// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/network"
	"github.com/AleutianAI/AleutianScreenplay/services/screenplay/pipeline"
)

// ErrNoJSON indicates a response with no JSON object in it.
var ErrNoJSON = errors.New("no JSON object in response")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case "low", "medium", "high", "critical":
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("phase", func(fl validator.FieldLevel) bool {
		_, ok := network.ParsePhase(fl.Field().String())
		return ok
	})
}

// ExtractJSON returns the outermost JSON object in a model response.
//
// Description:
//
//	Markdown code fences are removed, then the text from the first '{'
//	to the last '}' is returned. No attempt is made to repair the JSON.
//
// Outputs:
//
//	string - The candidate object.
//	error - ErrNoJSON when no braces are found.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = rest
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// DecodeValidated extracts, decodes and validates a JSON answer into out.
//
// Outputs:
//
//	error - Wraps pipeline.ErrInvalidOutput on any extraction, decode or
//	        validation failure.
func DecodeValidated(text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return fmt.Errorf("%w: %w", pipeline.ErrInvalidOutput, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: decode: %w", pipeline.ErrInvalidOutput, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s", pipeline.ErrInvalidOutput, describeValidation(err))
	}
	return nil
}

// describeValidation flattens validator errors into one line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
