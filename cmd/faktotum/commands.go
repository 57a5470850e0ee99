// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nwiesmann/faktotum/pkg/markdown"
	"github.com/nwiesmann/faktotum/pkg/pipeline"
)

type askResult struct {
	Agent  string `json:"agent"`
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// runAsk sends one query to one agent. An @mention in the query wins
// over --agent, which wins over the configured default.
func runAsk(ctx context.Context, a *app, global globalFlags, args []string) {
	cmd := flag.NewFlagSet("ask", flag.ContinueOnError)
	agentFlag := cmd.String("agent", "", "Agent name or alias")
	project := cmd.String("project", "", "Project ID for knowledge base scoping")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() == 0 {
		fatal(errors.New("usage: faktotum ask [--agent <name>] [--project <id>] <query>"))
	}
	query := strings.Join(cmd.Args(), " ")

	agentName, query := a.parseMention(query)
	if agentName == "" && *agentFlag != "" {
		agentName = a.resolveAlias(*agentFlag)
		if agentName == "" {
			fatal(fmt.Errorf("unknown agent %q (available: %s)", *agentFlag, strings.Join(a.agentNames(), ", ")))
		}
	}
	if agentName == "" {
		agentName = a.defaultAgent()
	}

	session, err := a.session(agentName, *project)
	if err != nil {
		fatal(err)
	}
	answer, err := session.Run(ctx, query)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(askResult{Agent: agentName, Query: query, Answer: answer})
		return
	}
	fmt.Printf("[%s]\n%s\n", session.DisplayName(), answer)
}

// runOrchestrate hands the task to the supervisor, which breaks it
// down and delegates to the specialist agents.
func runOrchestrate(ctx context.Context, a *app, global globalFlags, args []string) {
	cmd := flag.NewFlagSet("orchestrate", flag.ContinueOnError)
	project := cmd.String("project", "", "Project ID for knowledge base scoping")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() == 0 {
		fatal(errors.New("usage: faktotum orchestrate [--project <id>] <task>"))
	}
	task := strings.Join(cmd.Args(), " ")

	supervisor, err := a.supervisor(*project)
	if err != nil {
		fatal(err)
	}
	answer, err := supervisor.Run(ctx, task)
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(askResult{Agent: supervisorAgent, Query: task, Answer: answer})
		return
	}
	fmt.Println(answer)
}

// runProcess answers the questions in a markdown file in place. Each
// answer is persisted before the next question starts.
func runProcess(ctx context.Context, a *app, global globalFlags, args []string) {
	cmd := flag.NewFlagSet("process", flag.ContinueOnError)
	output := cmd.String("output", "", "Output path (default: rewrite the input file)")
	project := cmd.String("project", "", "Project ID for knowledge base scoping")
	dryRun := cmd.Bool("dry-run", false, "Parse and report questions without answering")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if cmd.NArg() != 1 {
		fatal(errors.New("usage: faktotum process [--output <path>] [--project <id>] [--dry-run] <file>"))
	}
	inputPath := cmd.Arg(0)

	content, err := os.ReadFile(inputPath)
	if err != nil {
		fatal(err)
	}

	if *dryRun {
		reportQuestions(a, global, inputPath, string(content))
		return
	}

	outPath := *output
	if outPath == "" {
		outPath = inputPath
	}

	opts := []pipeline.Option{
		pipeline.WithDocument(filepath.Base(inputPath)),
		pipeline.WithResolver(func(mention string) string {
			if mention == "" {
				return a.defaultAgent()
			}
			if name := a.resolveAlias(mention); name != "" {
				return name
			}
			return a.defaultAgent()
		}),
		pipeline.WithSink(pipeline.NewFileSink(outPath)),
		pipeline.WithLogger(a.logger),
	}

	if a.cfg.History.Enabled {
		audit, err := pipeline.OpenSQLiteAudit(a.cfg.History.Path)
		if err != nil {
			fatal(err)
		}
		defer audit.Close()
		opts = append(opts, pipeline.WithAudit(audit))
	}

	processor, err := pipeline.New(func(ctx context.Context, agentName string) (pipeline.Loop, error) {
		return a.session(agentName, *project)
	}, opts...)
	if err != nil {
		fatal(err)
	}

	result, err := processor.Run(ctx, string(content))
	if err != nil {
		fatal(err)
	}

	if global.JSON {
		printJSON(result.Answers)
		return
	}
	failed := 0
	for _, answer := range result.Answers {
		if answer.Failed {
			failed++
		}
	}
	fmt.Printf("%d questions answered (%d failed), written to %s\n",
		len(result.Answers), failed, outPath)
}

func reportQuestions(a *app, global globalFlags, path, content string) {
	_, questions := markdown.Parse(content)
	if global.JSON {
		printJSON(questions)
		return
	}
	fmt.Printf("%s: %d questions\n", path, len(questions))
	writer := newTabWriter()
	writeRow(writer, "NUMBER", "AGENT", "QUESTION")
	for _, q := range questions {
		agentName := q.Agent
		if agentName == "" {
			agentName = a.defaultAgent()
		}
		writeRow(writer, fmt.Sprintf("%d", q.Number), agentName, q.Text)
	}
	_ = writer.Flush()
}

type agentRow struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
	Model       string   `json:"model"`
	Provider    string   `json:"provider"`
	Tools       []string `json:"tools,omitempty"`
}

func runAgents(a *app, global globalFlags) {
	rows := make([]agentRow, 0, len(a.cfg.Agents))
	for _, name := range a.agentNames() {
		ac, _ := a.cfg.ResolveAgent(name)
		role := a.roles[name]
		rows = append(rows, agentRow{
			Name:        name,
			DisplayName: role.Display(),
			Description: role.Description,
			Aliases:     role.Aliases,
			Model:       ac.Model,
			Provider:    ac.Provider,
			Tools:       ac.Tools,
		})
	}

	if global.JSON {
		printJSON(rows)
		return
	}
	writer := newTabWriter()
	writeRow(writer, "NAME", "DISPLAY", "PROVIDER", "MODEL", "ALIASES", "TOOLS")
	for _, row := range rows {
		writeRow(writer, row.Name, row.DisplayName, row.Provider, row.Model,
			strings.Join(row.Aliases, ","), strings.Join(row.Tools, ","))
	}
	_ = writer.Flush()
}

func (a *app) defaultAgent() string {
	if a.cfg.DefaultAgent != "" {
		return a.cfg.DefaultAgent
	}
	return "research"
}
