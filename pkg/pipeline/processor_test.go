package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type stubLoop struct {
	fn func(prompt string) (string, error)
}

func (s stubLoop) Run(_ context.Context, prompt string) (string, error) {
	return s.fn(prompt)
}

func echoFactory(prompts *[]string) SessionFactory {
	return func(_ context.Context, agentName string) (Loop, error) {
		return stubLoop{fn: func(prompt string) (string, error) {
			*prompts = append(*prompts, prompt)
			return fmt.Sprintf("Antwort %d von %s", len(*prompts), agentName), nil
		}}, nil
	}
}

type recordingSink struct {
	writes []string
}

func (r *recordingSink) Persist(_ context.Context, content string) error {
	r.writes = append(r.writes, content)
	return nil
}

const twoQuestionDoc = `# Projekt

Kontext des Projekts.

## Fragen

1. @research Erste Frage?
2. Zweite Frage?
`

func TestRunChainsAnswersIntoContext(t *testing.T) {
	var prompts []string
	p, err := New(echoFactory(&prompts))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := p.Run(context.Background(), twoQuestionDoc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(result.Answers))
	}
	if len(prompts) != 2 {
		t.Fatalf("expected 2 loop calls, got %d", len(prompts))
	}

	first := prompts[0]
	if !strings.Contains(first, "Kontext:\n") || !strings.Contains(first, "Kontext des Projekts.") {
		t.Errorf("first prompt missing context block:\n%s", first)
	}
	if !strings.Contains(first, "Frage:\nErste Frage?") {
		t.Errorf("first prompt missing question:\n%s", first)
	}
	if strings.Contains(first, "Bisherige Fragen und Antworten:") {
		t.Errorf("first prompt must not carry previous answers:\n%s", first)
	}

	second := prompts[1]
	if !strings.Contains(second, "Bisherige Fragen und Antworten:") {
		t.Errorf("second prompt missing previous-answers block:\n%s", second)
	}
	if !strings.Contains(second, result.Answers[0].Text) {
		t.Errorf("second prompt must contain the first answer:\n%s", second)
	}
	if !strings.Contains(second, "### Erste Frage?") {
		t.Errorf("previous answers must be labeled with their question:\n%s", second)
	}
	if !strings.Contains(second, "Aktuelle Frage:\nZweite Frage?") {
		t.Errorf("second prompt missing current question:\n%s", second)
	}
}

func TestRunPersistsAfterEveryAnswer(t *testing.T) {
	var prompts []string
	sink := &recordingSink{}
	p, err := New(echoFactory(&prompts), WithSink(sink))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := p.Run(context.Background(), twoQuestionDoc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(sink.writes) != 2 {
		t.Fatalf("expected one persist per answer, got %d", len(sink.writes))
	}
	// After the first answer the second question is still unanswered.
	if !strings.Contains(sink.writes[0], result.Answers[0].Text) {
		t.Errorf("first persist missing first answer:\n%s", sink.writes[0])
	}
	if !strings.Contains(sink.writes[0], "2. Zweite Frage?") {
		t.Errorf("first persist must keep the pending question:\n%s", sink.writes[0])
	}
	if sink.writes[1] != result.Content {
		t.Errorf("final persist must equal the returned content")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	calls := 0
	factory := func(_ context.Context, _ string) (Loop, error) {
		return stubLoop{fn: func(string) (string, error) {
			calls++
			if calls == 1 {
				return "", fmt.Errorf("boom")
			}
			return "Zweite Antwort", nil
		}}, nil
	}

	p, err := New(factory)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := p.Run(context.Background(), twoQuestionDoc)
	if err != nil {
		t.Fatalf("a failing question must not fail the run: %v", err)
	}
	if len(result.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(result.Answers))
	}

	if !result.Answers[0].Failed {
		t.Error("first answer must be marked failed")
	}
	if result.Answers[0].Text != "Fehler bei der Verarbeitung: boom" {
		t.Errorf("unexpected placeholder: %q", result.Answers[0].Text)
	}
	if result.Answers[1].Failed || result.Answers[1].Text != "Zweite Antwort" {
		t.Errorf("second question must still be processed: %+v", result.Answers[1])
	}
	if !strings.Contains(result.Content, "Fehler bei der Verarbeitung: boom") {
		t.Errorf("placeholder missing from rendered document:\n%s", result.Content)
	}
}

func TestRunFactoryErrorBecomesPlaceholder(t *testing.T) {
	factory := func(_ context.Context, agentName string) (Loop, error) {
		return nil, fmt.Errorf("unknown agent %q", agentName)
	}

	p, err := New(factory, WithResolver(func(string) string { return "research" }))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	result, err := p.Run(context.Background(), "## Fragen\n\n1. Frage?\n")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !result.Answers[0].Failed {
		t.Error("expected failed answer")
	}
	if !strings.Contains(result.Answers[0].Text, "Fehler bei der Verarbeitung:") {
		t.Errorf("unexpected placeholder: %q", result.Answers[0].Text)
	}
}

func TestRunDeterministic(t *testing.T) {
	factory := func(_ context.Context, _ string) (Loop, error) {
		return stubLoop{fn: func(prompt string) (string, error) {
			return fmt.Sprintf("Echo: %d Zeichen", len(prompt)), nil
		}}, nil
	}

	p, err := New(factory)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	first, err := p.Run(context.Background(), twoQuestionDoc)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := p.Run(context.Background(), twoQuestionDoc)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Content != second.Content {
		t.Error("identical inputs must render identical output")
	}
}

func TestRunNoQuestions(t *testing.T) {
	factoryCalled := false
	factory := func(_ context.Context, _ string) (Loop, error) {
		factoryCalled = true
		return nil, nil
	}

	p, err := New(factory)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	content := "Nur Text ohne Fragen.\n"
	result, err := p.Run(context.Background(), content)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Content != content {
		t.Errorf("content must pass through unchanged: %q", result.Content)
	}
	if factoryCalled {
		t.Error("no sessions must be created for a document without questions")
	}
}

func TestRunResolvesMentions(t *testing.T) {
	var seen []string
	factory := func(_ context.Context, agentName string) (Loop, error) {
		seen = append(seen, agentName)
		return stubLoop{fn: func(string) (string, error) { return "ok", nil }}, nil
	}

	p, err := New(factory, WithResolver(func(mention string) string {
		if mention == "arch" {
			return "architekt"
		}
		return "research"
	}))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	doc := "## Fragen\n\n1. @arch Frage eins?\n2. Frage zwei?\n"
	if _, err := p.Run(context.Background(), doc); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != 2 || seen[0] != "architekt" || seen[1] != "research" {
		t.Errorf("unexpected agent resolution: %v", seen)
	}
}

func TestRunRecordsAuditSteps(t *testing.T) {
	audit, err := OpenSQLiteAudit(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	defer audit.Close()

	calls := 0
	factory := func(_ context.Context, _ string) (Loop, error) {
		return stubLoop{fn: func(string) (string, error) {
			calls++
			if calls == 1 {
				return "", fmt.Errorf("boom")
			}
			return "ok", nil
		}}, nil
	}

	p, err := New(factory,
		WithAudit(audit),
		WithDocument("plan.md"),
		WithResolver(func(string) string { return "research" }),
	)
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}

	if _, err := p.Run(context.Background(), twoQuestionDoc); err != nil {
		t.Fatalf("run: %v", err)
	}

	events, err := audit.List(context.Background(), StepFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 step events, got %d", len(events))
	}
	if !events[0].Failed || events[1].Failed {
		t.Errorf("failed flags not journaled: %+v", events)
	}
	if events[0].Document != "plan.md" || events[0].RunID == "" || events[0].ID == "" {
		t.Errorf("missing identifiers: %+v", events[0])
	}
	if events[1].Answer != "ok" || events[1].Number != 2 {
		t.Errorf("unexpected second event: %+v", events[1])
	}

	byAgent, err := audit.List(context.Background(), StepFilter{Agent: "research", Limit: 1})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(byAgent) != 1 {
		t.Errorf("expected 1 filtered event, got %d", len(byAgent))
	}
}

func TestFileSinkWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.md")
	sink := NewFileSink(path)

	if err := sink.Persist(context.Background(), "erster Stand"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := sink.Persist(context.Background(), "zweiter Stand"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "zweiter Stand" {
		t.Errorf("expected last write to win, got %q", got)
	}
}
