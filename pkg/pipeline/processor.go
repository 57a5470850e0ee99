// Package pipeline drives the sequential markdown Q&A batch: each
// parsed question is answered by its agent with the document context
// plus all previous answers, and the rendered document is persisted
// after every single answer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nwiesmann/faktotum/pkg/core"
	"github.com/nwiesmann/faktotum/pkg/errors"
	"github.com/nwiesmann/faktotum/pkg/markdown"
	"github.com/nwiesmann/faktotum/pkg/telemetry"
)

// Loop is the per-question conversation loop. *agent.Session satisfies it.
type Loop interface {
	Run(ctx context.Context, query string) (string, error)
}

// SessionFactory builds a fresh conversation loop for the named agent.
// A new loop is created per question so no history leaks between them.
type SessionFactory func(ctx context.Context, agentName string) (Loop, error)

// Answer is one processed question. Failed answers carry the failure
// placeholder as Text and still feed the context of later questions.
type Answer struct {
	Question markdown.Question
	Agent    string
	Text     string
	Failed   bool
}

// Result is the outcome of one pipeline run.
type Result struct {
	Content string
	Answers []Answer
}

// Processor runs the batch. Questions are processed strictly in parsed
// order; a failing question never aborts the run.
type Processor struct {
	sessions SessionFactory
	resolve  func(mention string) string
	sink     Sink
	audit    Auditor
	document string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Processor.
type Option func(*Processor)

// WithResolver sets the mention-to-agent-name resolution. The default
// passes mentions through unchanged.
func WithResolver(fn func(mention string) string) Option {
	return func(p *Processor) { p.resolve = fn }
}

// WithSink sets the persistence target written after every answer.
func WithSink(s Sink) Option {
	return func(p *Processor) { p.sink = s }
}

// WithAudit journals every processed question to the given auditor.
func WithAudit(a Auditor) Option {
	return func(p *Processor) { p.audit = a }
}

// WithDocument sets the document label used in logs and audit records.
func WithDocument(name string) Option {
	return func(p *Processor) { p.document = name }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New builds a Processor around the given session factory.
func New(sessions SessionFactory, opts ...Option) (*Processor, error) {
	if sessions == nil {
		return nil, errors.New(errors.CodeInvalidInput, "pipeline requires a session factory", nil)
	}
	p := &Processor{
		sessions: sessions,
		resolve:  func(mention string) string { return mention },
		logger:   slog.Default(),
		tracer:   otel.Tracer("faktotum/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run parses the document, answers every question in order and returns
// the fully rendered result. The document is re-rendered and persisted
// after each answer, so a crash loses at most the answer in flight.
func (p *Processor) Run(ctx context.Context, content string) (*Result, error) {
	ctx, runID := core.EnsureRunID(ctx)

	docContext, questions := markdown.Parse(content)
	if len(questions) == 0 {
		p.logger.InfoContext(ctx, "pipeline.run.empty", "document", p.document)
		return &Result{Content: content}, nil
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	p.logger.InfoContext(ctx, "pipeline.run.start",
		"document", p.document, "questions", len(questions), "run_id", runID)

	rendered := content
	answers := make([]Answer, 0, len(questions))

	for _, q := range questions {
		agentName := p.resolve(q.Agent)
		started := time.Now().UTC()
		a := p.answer(ctx, docContext, answers, q, agentName)
		answers = append(answers, a)

		rendered = markdown.Render(content, toMarkdownAnswers(answers))
		if p.sink != nil {
			if err := p.sink.Persist(ctx, rendered); err != nil {
				span.RecordError(err)
				p.logger.ErrorContext(ctx, "pipeline.persist.failed",
					"document", p.document, "question", q.Number, "error", err)
				return nil, errors.New(errors.CodeInternal, "persisting pipeline output", err)
			}
		}

		if p.audit != nil {
			p.recordStep(ctx, runID, q, a, started)
		}
	}

	failed := 0
	for _, a := range answers {
		if a.Failed {
			failed++
		}
	}
	p.logger.InfoContext(ctx, "pipeline.run.done",
		"document", p.document, "answered", len(answers), "failed", failed)

	return &Result{Content: rendered, Answers: answers}, nil
}

// answer runs one question through its agent. Any failure, including
// an unresolvable agent, becomes a placeholder answer.
func (p *Processor) answer(ctx context.Context, docContext string, previous []Answer, q markdown.Question, agentName string) Answer {
	ctx, span := p.tracer.Start(ctx, "pipeline.question",
		trace.WithAttributes(telemetry.QuestionAttributes(p.document, q.Number, agentName, false)...))
	defer span.End()

	p.logger.InfoContext(ctx, "pipeline.question.start",
		"number", q.Number, "agent", agentName)

	prompt := buildPrompt(docContext, previous, q.Text)

	text, err := p.runLoop(ctx, agentName, prompt)
	if err != nil {
		span.RecordError(err)
		p.logger.WarnContext(ctx, "pipeline.question.failed",
			"number", q.Number, "agent", agentName, "error", err)
		return Answer{
			Question: q,
			Agent:    agentName,
			Text:     fmt.Sprintf("Fehler bei der Verarbeitung: %v", err),
			Failed:   true,
		}
	}

	p.logger.InfoContext(ctx, "pipeline.question.done", "number", q.Number)
	return Answer{Question: q, Agent: agentName, Text: text}
}

func (p *Processor) runLoop(ctx context.Context, agentName, prompt string) (string, error) {
	loop, err := p.sessions(ctx, agentName)
	if err != nil {
		return "", err
	}
	return loop.Run(ctx, prompt)
}

func (p *Processor) recordStep(ctx context.Context, runID string, q markdown.Question, a Answer, started time.Time) {
	err := p.audit.Record(ctx, StepEvent{
		ID:         uuid.New().String(),
		RunID:      runID,
		Document:   p.document,
		Number:     q.Number,
		Agent:      a.Agent,
		Question:   q.Text,
		Answer:     a.Text,
		Failed:     a.Failed,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		p.logger.WarnContext(ctx, "pipeline.audit.failed",
			"question", q.Number, "error", err)
	}
}

// buildPrompt assembles the per-question prompt: document context,
// the previously answered blocks and the current question.
func buildPrompt(docContext string, previous []Answer, question string) string {
	if len(previous) == 0 {
		return fmt.Sprintf(
			"Kontext:\n%s\n\nFrage:\n%s\n\nBitte beantworte die Frage basierend auf dem gegebenen Kontext.",
			docContext, question)
	}

	var b strings.Builder
	b.WriteString("Bisherige Fragen und Antworten:\n")
	for _, a := range previous {
		fmt.Fprintf(&b, "\n### %s\n%s\n", a.Question.Text, a.Text)
	}

	return fmt.Sprintf(
		"Kontext:\n%s\n\n%s\n\nAktuelle Frage:\n%s\n\nBitte beantworte die Frage basierend auf dem Kontext und den bisherigen Antworten.",
		docContext, b.String(), question)
}

func toMarkdownAnswers(answers []Answer) []markdown.Answer {
	out := make([]markdown.Answer, len(answers))
	for i, a := range answers {
		out[i] = markdown.Answer{
			QuestionNumber: a.Question.Number,
			QuestionText:   a.Question.Text,
			LineIndex:      a.Question.LineIndex,
			Text:           a.Text,
		}
	}
	return out
}
