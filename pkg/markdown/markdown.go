// Package markdown extracts numbered questions from a document and
// renders generated answers back into it.
//
// Two layouts are supported. With an explicit "Fragen" section header
// (#, ## or ###), every numbered item after the header is a question.
// Without one, a numbered item counts as a question only if it carries
// an @agent mention or ends with a question mark.
package markdown

import (
	"regexp"
	"strconv"
	"strings"
)

// questionPattern matches numbered items like "1. @research Warum?" or
// "2. Warum?". The mention is optional.
var questionPattern = regexp.MustCompile(`^(\d+)\.\s+(?:@(\w+)\s+)?(.+)$`)

// sectionPattern matches a "Fragen" section header.
var sectionPattern = regexp.MustCompile(`(?i)^#{1,3}\s*Fragen\s*$`)

// Question is one parsed numbered item. Agent is the raw @mention
// without the @, empty when the item has none; alias resolution is the
// caller's concern. Identity for rendering is LineIndex, never the
// question text, so duplicated text cannot mis-insert.
type Question struct {
	Number       int
	Agent        string
	Text         string
	LineIndex    int
	OriginalLine string
}

// Answer pairs a question with its generated text for rendering.
type Answer struct {
	QuestionNumber int
	QuestionText   string
	LineIndex      int
	Text           string
}

// Parse splits a document into its context block and the ordered list
// of questions. Context is everything before the Fragen header, or
// before the first question when no header exists.
func Parse(content string) (string, []Question) {
	lines := strings.Split(content, "\n")

	sectionStart := -1
	for i, line := range lines {
		if sectionPattern.MatchString(strings.TrimSpace(line)) {
			sectionStart = i
			break
		}
	}

	searchStart := 0
	contextEnd := len(lines)
	if sectionStart >= 0 {
		searchStart = sectionStart + 1
		contextEnd = sectionStart
	}

	var questions []Question
	for i := searchStart; i < len(lines); i++ {
		m := questionPattern.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])
		mention := m[2]
		text := strings.TrimSpace(m[3])

		if sectionStart < 0 {
			if mention == "" && !strings.HasSuffix(text, "?") {
				continue
			}
			if len(questions) == 0 {
				contextEnd = i
			}
		}

		questions = append(questions, Question{
			Number:       number,
			Agent:        mention,
			Text:         text,
			LineIndex:    i,
			OriginalLine: lines[i],
		})
	}

	context := strings.TrimSpace(strings.Join(lines[:contextEnd], "\n"))
	return context, questions
}

// Render replaces each answered question line with a "### <question>"
// header followed by the answer text. A stale answer block left over
// from a previous run (a "###" header or a "**Antwort:**" line right
// after the question) is dropped before the fresh answer is inserted.
// Unanswered questions and all other lines pass through unchanged.
func Render(original string, answers []Answer) string {
	byLine := make(map[int]Answer, len(answers))
	for _, a := range answers {
		byLine[a.LineIndex] = a
	}

	lines := strings.Split(original, "\n")
	var out []string

	for i := 0; i < len(lines); i++ {
		a, ok := byLine[i]
		if !ok {
			out = append(out, lines[i])
			continue
		}

		out = append(out, "### "+a.QuestionText, "", a.Text, "")
		i = skipStaleBlock(lines, i)
	}

	return strings.Join(out, "\n")
}

// skipStaleBlock returns the index of the last line belonging to the
// question at index i, including a previously rendered answer block if
// one directly follows it.
func skipStaleBlock(lines []string, i int) int {
	k := i + 1
	for k < len(lines) && strings.TrimSpace(lines[k]) == "" {
		k++
	}
	if k >= len(lines) {
		return i
	}

	first := strings.TrimSpace(lines[k])
	if questionPattern.MatchString(first) {
		return i
	}
	if !strings.HasPrefix(first, "###") && !strings.HasPrefix(first, "**Antwort:**") {
		return i
	}

	j := k + 1
	for j < len(lines) {
		if questionPattern.MatchString(strings.TrimSpace(lines[j])) {
			break
		}
		j++
	}
	return j - 1
}
