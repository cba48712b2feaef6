package domain

import "errors"

// RuleViolationError is returned when an aggregate's current state forbids the
// requested change. It is distinct from input validation errors.
type RuleViolationError struct {
	msg string
}

func (e *RuleViolationError) Error() string {
	return e.msg
}

func ruleViolation(msg string) error {
	return &RuleViolationError{msg: msg}
}

func IsRuleViolation(err error) bool {
	var rv *RuleViolationError
	return errors.As(err, &rv)
}
