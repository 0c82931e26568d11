package password

import (
	"fmt"
	"time"

	"github.com/facilitaservicos/authcore/identity"
)

// Strength is the qualitative band derived from a password's score.
type Strength string

const (
	StrengthVeryWeak   Strength = "very_weak"
	StrengthWeak       Strength = "weak"
	StrengthMedium     Strength = "medium"
	StrengthStrong     Strength = "strong"
	StrengthVeryStrong Strength = "very_strong"
)

const (
	maxLengthScore = 40
	classScore     = 10
	symbolScore    = 15
	fullBonus      = 15
	maxScore       = 100
)

// Assessment is the detailed result of analysing a candidate password.
// Purely computed, never persisted.
type Assessment struct {
	Score       int      `json:"score"`
	Strength    Strength `json:"strength"`
	HasUpper    bool     `json:"has_upper"`
	HasLower    bool     `json:"has_lower"`
	HasDigit    bool     `json:"has_digit"`
	HasSymbol   bool     `json:"has_symbol"`
	LengthOK    bool     `json:"length_ok"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Engine scores and validates candidate passwords against policy and
// checks identity password expiry. All methods are pure functions of the
// input plus the configured thresholds.
type Engine struct {
	minLength  int
	maxLength  int
	minScore   int
	expiryDays int
	nowFunc    func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMinScore overrides the minimum acceptable score (default 70).
func WithMinScore(score int) EngineOption {
	return func(e *Engine) {
		e.minScore = score
	}
}

// WithLengthBounds overrides the accepted length range (default 8..64).
func WithLengthBounds(minLength, maxLength int) EngineOption {
	return func(e *Engine) {
		e.minLength = minLength
		e.maxLength = maxLength
	}
}

// WithExpiryDays overrides the password expiry window (default 90 days).
func WithExpiryDays(days int) EngineOption {
	return func(e *Engine) {
		e.expiryDays = days
	}
}

// WithNowFunc sets the clock used by IsExpired (primarily for testing).
func WithNowFunc(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = now
	}
}

// NewEngine creates a strength engine with the default policy.
func NewEngine(options ...EngineOption) *Engine {
	e := &Engine{
		minLength:  8,
		maxLength:  64,
		minScore:   70,
		expiryDays: 90,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

type composition struct {
	upper, lower, digit, symbol bool
	whitespace                  bool
	length                      int
}

// classify walks the password once. Character classes follow the original
// policy: ASCII letters and digits, everything else counts as a symbol.
func classify(password string) composition {
	var c composition
	for _, r := range password {
		c.length++
		switch {
		case r >= 'A' && r <= 'Z':
			c.upper = true
		case r >= 'a' && r <= 'z':
			c.lower = true
		case r >= '0' && r <= '9':
			c.digit = true
		default:
			c.symbol = true
		}
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			c.whitespace = true
		}
	}
	return c
}

// Score computes the 0..100 strength score. The algorithm is deterministic
// and order-independent: length contributes min(length*4, 40), each present
// character class adds 10 (symbols 15), and a 15-point bonus applies when
// the password is within the length bounds, whitespace-free, and contains
// all four classes.
func (e *Engine) Score(password string) int {
	if password == "" {
		return 0
	}

	c := classify(password)

	score := c.length * 4
	if score > maxLengthScore {
		score = maxLengthScore
	}
	if c.upper {
		score += classScore
	}
	if c.lower {
		score += classScore
	}
	if c.digit {
		score += classScore
	}
	if c.symbol {
		score += symbolScore
	}

	if c.length >= e.minLength && c.length <= e.maxLength &&
		!c.whitespace && c.upper && c.lower && c.digit && c.symbol {
		score += fullBonus
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// Assess produces the full assessment: score, band, composition flags, and
// improvement suggestions keyed to the unmet criteria.
func (e *Engine) Assess(password string) Assessment {
	c := classify(password)
	score := e.Score(password)

	a := Assessment{
		Score:     score,
		Strength:  bandFor(score),
		HasUpper:  c.upper,
		HasLower:  c.lower,
		HasDigit:  c.digit,
		HasSymbol: c.symbol,
		LengthOK:  c.length >= e.minLength && c.length <= e.maxLength,
	}
	a.Suggestions = e.suggestions(c)
	return a
}

// Validate checks the password against policy, returning the first
// violation in the fixed order: minimum length, maximum length, score,
// then each character class.
func (e *Engine) Validate(password string) error {
	c := classify(password)

	if c.length < e.minLength {
		return violation(RuleTooShort, "password must be at least %d characters long", e.minLength)
	}
	if c.length > e.maxLength {
		return violation(RuleTooLong, "password must be at most %d characters long", e.maxLength)
	}
	if score := e.Score(password); score < e.minScore {
		return violation(RuleScoreBelowMinimum, "password too weak (score %d/%d), use more complex combinations", score, e.minScore)
	}
	if !c.upper {
		return violation(RuleMissingUppercase, "password must contain at least one uppercase letter")
	}
	if !c.lower {
		return violation(RuleMissingLowercase, "password must contain at least one lowercase letter")
	}
	if !c.digit {
		return violation(RuleMissingDigit, "password must contain at least one digit")
	}
	if !c.symbol {
		return violation(RuleMissingSymbol, "password must contain at least one special character")
	}
	return nil
}

// MeetsPolicy reports whether the password would pass Validate.
func (e *Engine) MeetsPolicy(password string) bool {
	return e.Validate(password) == nil
}

// IsExpired reports whether the identity's password is past the expiry
// window. An identity with no recorded password change is expired.
func (e *Engine) IsExpired(ident *identity.Identity) bool {
	if ident.LastPasswordChange.IsZero() {
		return true
	}
	deadline := ident.LastPasswordChange.AddDate(0, 0, e.expiryDays)
	return e.nowFunc().After(deadline)
}

func (e *Engine) suggestions(c composition) []string {
	var suggestions []string
	if c.length < e.minLength {
		suggestions = append(suggestions, fmt.Sprintf("increase length to at least %d characters", e.minLength))
	}
	if !c.upper {
		suggestions = append(suggestions, "add uppercase letters (A-Z)")
	}
	if !c.lower {
		suggestions = append(suggestions, "add lowercase letters (a-z)")
	}
	if !c.digit {
		suggestions = append(suggestions, "add digits (0-9)")
	}
	if !c.symbol {
		suggestions = append(suggestions, "add special characters (!@#$%^&*)")
	}
	if c.length > 12 {
		suggestions = append(suggestions, "consider long passphrases with spaces or hyphens")
	}
	return suggestions
}

func bandFor(score int) Strength {
	switch {
	case score < 30:
		return StrengthVeryWeak
	case score < 50:
		return StrengthWeak
	case score < 70:
		return StrengthMedium
	case score < 90:
		return StrengthStrong
	default:
		return StrengthVeryStrong
	}
}
