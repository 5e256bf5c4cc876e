package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	shortCodeAlphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	DefaultShortCodeLength = 7
	MaxShortCodeLength     = 32
	DefaultMaxAttempts     = 5
)

var shortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

// reservedCodes collide with routes served next to the redirect handler.
var reservedCodes = map[string]struct{}{
	"api":       {},
	"auth":      {},
	"dashboard": {},
	"docs":      {},
	"swagger":   {},
	"login":     {},
	"logout":    {},
	"signup":    {},
	"healthz":   {},
	"static":    {},
}

// CodeGenerator produces random short codes and validates custom aliases.
// Collisions are detected by the link store; the generator is only asked again.
type CodeGenerator struct {
	length int
}

// NewCodeGenerator returns a generator of codes with the given length.
// Non-positive lengths fall back to DefaultShortCodeLength.
func NewCodeGenerator(length int) *CodeGenerator {
	if length <= 0 {
		length = DefaultShortCodeLength
	}
	if length > MaxShortCodeLength {
		length = MaxShortCodeLength
	}

	return &CodeGenerator{length: length}
}

// Generate draws a new code from a 62 symbol alphabet using crypto/rand.
func (g *CodeGenerator) Generate() (string, error) {
	const op = "usecase.CodeGenerator.Generate"

	code, err := gonanoid.Generate(shortCodeAlphabet, g.length)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

// ValidateCustom rejects codes outside [a-zA-Z0-9_-]{1,32} and reserved route names.
func (g *CodeGenerator) ValidateCustom(code string) error {
	const op = "usecase.CodeGenerator.ValidateCustom"

	if !ValidShortCode(code) {
		return fmt.Errorf("%s: malformed short code %q: %w", op, code, entity.ErrInvalidInput)
	}

	if _, ok := reservedCodes[strings.ToLower(code)]; ok {
		return fmt.Errorf("%s: reserved short code %q: %w", op, code, entity.ErrInvalidInput)
	}

	return nil
}

// ValidShortCode reports whether s could ever be a stored short code.
func ValidShortCode(s string) bool {
	return shortCodePattern.MatchString(s)
}
