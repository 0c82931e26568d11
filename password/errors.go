package password

import "fmt"

// Rule identifies the specific policy rule a password failed.
type Rule string

const (
	RuleTooShort          Rule = "TOO_SHORT"
	RuleTooLong           Rule = "TOO_LONG"
	RuleScoreBelowMinimum Rule = "SCORE_BELOW_MINIMUM"
	RuleMissingUppercase  Rule = "MISSING_UPPERCASE"
	RuleMissingLowercase  Rule = "MISSING_LOWERCASE"
	RuleMissingDigit      Rule = "MISSING_DIGIT"
	RuleMissingSymbol     Rule = "MISSING_SYMBOL"
)

// PolicyViolation reports a single violated password rule. It is always
// recoverable by the caller: fix the password and retry.
type PolicyViolation struct {
	Rule    Rule
	Message string
}

func (v *PolicyViolation) Error() string {
	return fmt.Sprintf("password policy violation [%s]: %s", v.Rule, v.Message)
}

func violation(rule Rule, format string, args ...any) *PolicyViolation {
	return &PolicyViolation{Rule: rule, Message: fmt.Sprintf(format, args...)}
}
