// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides scenario helpers for exercising agent
// sessions with scripted providers: declarative expectations on the
// final output, captured requests of a mock provider, and builders for
// tool calls and definitions.
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

// Runner is anything that answers a query, typically an
// *agent.Session or an *orchestrator.Supervisor.
type Runner interface {
	Run(ctx context.Context, query string) (string, error)
}

// Scenario is one declarative agent interaction test.
type Scenario struct {
	name         string
	input        string
	context      context.Context
	timeout      time.Duration
	expectations []Expectation
}

// Expectation is a condition verified against a scenario result.
type Expectation interface {
	Check(result *ScenarioResult) error
	Description() string
}

// ScenarioResult is the outcome of running a scenario.
type ScenarioResult struct {
	Output   string
	Error    error
	Duration time.Duration
}

// NewScenario creates a scenario with the given name.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		context: context.Background(),
		timeout: 30 * time.Second,
	}
}

// WithInput sets the user query.
func (s *Scenario) WithInput(input string) *Scenario {
	s.input = input
	return s
}

// WithContext sets the base context.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout bounds the run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// Expect adds a custom expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectOutput expects the final answer to satisfy the matcher.
func (s *Scenario) ExpectOutput(matcher StringMatcher) *Scenario {
	return s.Expect(&outputExpectation{matcher: matcher})
}

// ExpectNoError expects the run to succeed.
func (s *Scenario) ExpectNoError() *Scenario {
	return s.Expect(&noErrorExpectation{})
}

// ExpectError expects a failure whose message satisfies the matcher.
func (s *Scenario) ExpectError(matcher StringMatcher) *Scenario {
	return s.Expect(&errorExpectation{matcher: matcher})
}

// Run executes the scenario against the runner and asserts all
// expectations.
func (s *Scenario) Run(t *testing.T, runner Runner) *ScenarioResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	output, err := runner.Run(ctx, s.input)
	result := &ScenarioResult{
		Output:   output,
		Error:    err,
		Duration: time.Since(start),
	}

	for _, exp := range s.expectations {
		if checkErr := exp.Check(result); checkErr != nil {
			t.Errorf("scenario %q: %s: %v", s.name, exp.Description(), checkErr)
		}
	}
	return result
}

// StringMatcher matches a string against a condition.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return &containsMatcher{substr: substr}
}

// Equals matches the exact string.
func Equals(expected string) StringMatcher {
	return &equalsMatcher{expected: expected}
}

// Regex matches against a regular expression.
func Regex(pattern string) StringMatcher {
	return &regexMatcher{pattern: pattern}
}

// HasPrefix matches strings starting with prefix.
func HasPrefix(prefix string) StringMatcher {
	return &prefixMatcher{prefix: prefix}
}

type containsMatcher struct{ substr string }

func (m *containsMatcher) Match(s string) bool { return strings.Contains(s, m.substr) }
func (m *containsMatcher) Description() string { return fmt.Sprintf("contains %q", m.substr) }

type equalsMatcher struct{ expected string }

func (m *equalsMatcher) Match(s string) bool { return s == m.expected }
func (m *equalsMatcher) Description() string { return fmt.Sprintf("equals %q", m.expected) }

type regexMatcher struct{ pattern string }

func (m *regexMatcher) Match(s string) bool {
	ok, err := regexp.MatchString(m.pattern, s)
	return err == nil && ok
}
func (m *regexMatcher) Description() string { return fmt.Sprintf("matches %q", m.pattern) }

type prefixMatcher struct{ prefix string }

func (m *prefixMatcher) Match(s string) bool { return strings.HasPrefix(s, m.prefix) }
func (m *prefixMatcher) Description() string { return fmt.Sprintf("has prefix %q", m.prefix) }

type outputExpectation struct{ matcher StringMatcher }

func (e *outputExpectation) Check(r *ScenarioResult) error {
	if !e.matcher.Match(r.Output) {
		return fmt.Errorf("output %q does not match", r.Output)
	}
	return nil
}
func (e *outputExpectation) Description() string {
	return "output " + e.matcher.Description()
}

type noErrorExpectation struct{}

func (e *noErrorExpectation) Check(r *ScenarioResult) error {
	if r.Error != nil {
		return fmt.Errorf("unexpected error: %w", r.Error)
	}
	return nil
}
func (e *noErrorExpectation) Description() string { return "no error" }

type errorExpectation struct{ matcher StringMatcher }

func (e *errorExpectation) Check(r *ScenarioResult) error {
	if r.Error == nil {
		return fmt.Errorf("expected an error")
	}
	if !e.matcher.Match(r.Error.Error()) {
		return fmt.Errorf("error %q does not match", r.Error.Error())
	}
	return nil
}
func (e *errorExpectation) Description() string {
	return "error " + e.matcher.Description()
}
