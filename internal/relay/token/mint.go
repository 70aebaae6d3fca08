// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package token generates ticket IDs and upload keys from a small template
// language: literal text plus the placeholders {number}, {word}, and {uuid}.
// Each placeholder is replaced, left to right, one draw per occurrence.
package token

import (
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	placeholderNumber = "{number}"
	placeholderWord   = "{word}"
	placeholderUUID   = "{uuid}"
)

// Mint draws tokens from templates. It holds no state beyond the bundled
// word list; math/rand/v2's package-level generator is already safe for
// concurrent use, so a Mint is cheap to share across goroutines.
type Mint struct {
	words []string
}

// New returns a Mint backed by the bundled word list.
func New() *Mint {
	return &Mint{words: wordlist}
}

// GenerateUploadToken draws a ticket path from template. Functionally
// identical to GenerateKeyToken; the two exist only so callers can name
// intent (which tier field supplied the template).
func (m *Mint) GenerateUploadToken(template string) string {
	return m.generate(template)
}

// GenerateKeyToken draws an upload key from template.
func (m *Mint) GenerateKeyToken(template string) string {
	return m.generate(template)
}

func (m *Mint) generate(template string) string {
	var b strings.Builder
	rest := template
	for {
		i, ph := nextPlaceholder(rest)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:i])
		b.WriteString(m.draw(ph))
		rest = rest[i+len(ph):]
	}
}

func nextPlaceholder(s string) (int, string) {
	best := -1
	var bestPh string
	for _, ph := range []string{placeholderNumber, placeholderWord, placeholderUUID} {
		if idx := strings.Index(s, ph); idx >= 0 && (best < 0 || idx < best) {
			best = idx
			bestPh = ph
		}
	}
	return best, bestPh
}

func (m *Mint) draw(placeholder string) string {
	switch placeholder {
	case placeholderNumber:
		return strconv.Itoa(rand.IntN(100))
	case placeholderWord:
		if len(m.words) == 0 {
			return "word"
		}
		return m.words[rand.IntN(len(m.words))]
	case placeholderUUID:
		return uuid.NewString()
	default:
		return placeholder
	}
}
