// ABOUTME: validate_data tool: applies comma-separated rules to a string and reports violations.
// ABOUTME: Rules: required, json, yaml, email, max_length=N, min_length=N.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/2389/toolgate/internal/tools"
)

// ValidationResult is the result of validate_data.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Rules      []string `json:"rules"`
	Violations []string `json:"violations"`
}

// parseRules splits a rule list, dropping blanks.
func parseRules(spec string) []string {
	var rules []string
	for _, r := range strings.Split(spec, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			rules = append(rules, r)
		}
	}
	return rules
}

func validateData(_ context.Context, args tools.Args) (any, error) {
	data := args.String("data")
	rules := parseRules(args.String("rules"))
	if len(rules) == 0 {
		return nil, fmt.Errorf("no validation rules given")
	}

	violations := []string{}
	for _, rule := range rules {
		msg, err := checkRule(rule, data)
		if err != nil {
			return nil, err
		}
		if msg != "" {
			violations = append(violations, msg)
		}
	}

	return ValidationResult{
		Valid:      len(violations) == 0,
		Rules:      rules,
		Violations: violations,
	}, nil
}

// checkRule returns a violation message, or "" if data satisfies rule.
// An unknown or malformed rule is an error.
func checkRule(rule, data string) (string, error) {
	name, arg, hasArg := strings.Cut(rule, "=")
	name = strings.ToLower(strings.TrimSpace(name))

	switch name {
	case "required":
		if strings.TrimSpace(data) == "" {
			return "value is required", nil
		}
	case "json":
		if !json.Valid([]byte(data)) {
			return "value is not valid JSON", nil
		}
	case "yaml":
		var v any
		if err := yaml.Unmarshal([]byte(data), &v); err != nil {
			return fmt.Sprintf("value is not valid YAML: %v", err), nil
		}
	case "email":
		addr, err := mail.ParseAddress(data)
		if err != nil || addr.Address != strings.TrimSpace(data) {
			return "value is not a valid email address", nil
		}
	case "max_length", "min_length":
		if !hasArg {
			return "", fmt.Errorf("rule '%s' needs a value, e.g. %s=10", name, name)
		}
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || n < 0 {
			return "", fmt.Errorf("rule '%s' has invalid length '%s'", name, arg)
		}
		length := utf8.RuneCountInString(data)
		if name == "max_length" && length > n {
			return fmt.Sprintf("value length %d exceeds max_length %d", length, n), nil
		}
		if name == "min_length" && length < n {
			return fmt.Sprintf("value length %d is below min_length %d", length, n), nil
		}
	default:
		return "", fmt.Errorf("unknown validation rule '%s'", name)
	}
	return "", nil
}
