// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package phone normalises destination phone numbers into the canonical
// form the SMS transport accepts. Both the origin number and every
// recipient must pass through Normalize before any network call.
package phone

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNumber is returned when a number cannot be normalised into
// "+" followed by 11–15 digits.
var ErrInvalidNumber = errors.New("invalid phone number")

// Normalize strips every character except digits and a leading "+" and
// validates the result. Pure function, no side effects.
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	n := b.String()
	if !strings.HasPrefix(n, "+") {
		return "", fmt.Errorf("%w: %q has no leading +", ErrInvalidNumber, raw)
	}

	digits := len(n) - 1
	if digits < 11 || digits > 15 {
		return "", fmt.Errorf("%w: %q has %d digits, want 11-15", ErrInvalidNumber, raw, digits)
	}

	return n, nil
}
