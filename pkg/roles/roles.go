// Copyright 2026 © The Faktotum Authors
// SPDX-License-Identifier: Apache-2.0

// Package roles loads agent role definitions from markdown files. A
// role file is a system prompt, optionally preceded by YAML
// frontmatter carrying the display name, a description, and mention
// aliases. A file without frontmatter is a bare prompt named after
// the file.
package roles

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Role describes one agent role.
type Role struct {
	// Name is the role slug, unique within a roles directory.
	Name string
	// DisplayName labels delegated answers, e.g. "Solution Architekt".
	DisplayName string
	Description string
	// Aliases are alternative @mention names for this role.
	Aliases []string
	// Prompt is the system prompt, the markdown body of the file.
	Prompt string
	Path   string
}

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// LoadDir loads every .md file in a directory as a role.
func LoadDir(root string) ([]Role, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []Role
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		role, err := LoadFile(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		out = append(out, role)
	}
	return out, nil
}

// LoadFile parses a single role file.
func LoadFile(path string) (Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Role{}, err
	}

	name := strings.TrimSuffix(filepath.Base(path), ".md")
	role := Role{Name: name, Path: path}

	content := string(data)
	fm, body, hasFM := splitFrontmatter(content)
	if !hasFM {
		role.Prompt = strings.TrimSpace(content)
		if err := validate(role); err != nil {
			return Role{}, err
		}
		return role, nil
	}

	var parsed frontmatter
	if err := yaml.Unmarshal([]byte(fm), &parsed); err != nil {
		return Role{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	if parsed.Name != "" {
		role.Name = parsed.Name
	}
	role.DisplayName = parsed.DisplayName
	role.Description = parsed.Description
	role.Aliases = dedupe(parsed.Aliases)
	role.Prompt = strings.TrimSpace(body)

	if err := validate(role); err != nil {
		return Role{}, err
	}
	return role, nil
}

// Display returns the display name, falling back to the slug.
func (r Role) Display() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Name
}

type frontmatter struct {
	Name        string   `yaml:"name"`
	DisplayName string   `yaml:"display_name"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

// splitFrontmatter returns the YAML block and the body. The third
// return is false when the file carries no frontmatter.
func splitFrontmatter(content string) (string, string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "---") {
		return "", "", false
	}
	parts := strings.SplitN(trimmed, "---", 3)
	if len(parts) < 3 {
		return "", "", false
	}
	return strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), true
}

func validate(role Role) error {
	name := strings.TrimSpace(role.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	if utf8.RuneCountInString(role.Description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	if role.Prompt == "" {
		return errors.New("prompt body is required")
	}
	for _, alias := range role.Aliases {
		if !namePattern.MatchString(alias) {
			return fmt.Errorf("alias %q must match %s", alias, namePattern.String())
		}
	}
	return nil
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(strings.ToLower(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
