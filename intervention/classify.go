package intervention

import (
	"regexp"
	"strings"
)

// maxContextLen bounds the Context field, per spec.
const maxContextLen = 500

var (
	numberedOptionLine = regexp.MustCompile(`^\s*\d+[.)]\s+\S`)
	bulletedOptionLine = regexp.MustCompile(`^\s*[-*]\s+\S`)

	// approvalPhrases are tried in order; the first match wins.
	approvalPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(approve|approval|confirm|allow|permit|authorize)\b`),
		regexp.MustCompile(`(?i)waiting for .{0,30}?\b(approval|confirmation|permission)\b`),
		regexp.MustCompile(`(?i)proceed with (this|the|these)`),
		regexp.MustCompile(`(?i)do you want me to\b`),
	}

	inputPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(enter|provide|specify|type|input)\b\s+an?\b`),
		regexp.MustCompile(`(?i)what is your|what's your`),
	}

	questionLine = regexp.MustCompile(`\?\s*$`)
)

// Classify is a pure function of (agentID, chunk): it returns a new
// Request if chunk matches one of the four classes, or nil otherwise.
// Non-text chunks are the caller's concern — Classify only ever sees
// text, per the handler's contract.
func Classify(agentID, chunk string) *Request {
	if strings.TrimSpace(chunk) == "" {
		return nil
	}

	lines := strings.Split(chunk, "\n")

	// choice: fires only if at least two numbered or bulleted option lines
	// can be extracted; "choose one" phrasing alone does not trigger it.
	if options := extractOptions(lines); len(options) >= 2 {
		return newRequest(agentID, TypeChoice, lines, options)
	}

	for _, p := range approvalPhrases {
		if p.MatchString(chunk) {
			return newRequest(agentID, TypeApproval, lines, nil)
		}
	}

	for _, p := range inputPhrases {
		if p.MatchString(chunk) {
			return newRequest(agentID, TypeInput, lines, nil)
		}
	}

	if questionLine.MatchString(strings.TrimRight(chunk, " \t")) {
		return newRequest(agentID, TypeQuestion, lines, nil)
	}

	return nil
}

// extractOptions tries numbered patterns first, then bulleted; numbered
// wins if both yield >= 2.
func extractOptions(lines []string) []string {
	numbered := matchingLines(lines, numberedOptionLine)
	if len(numbered) >= 2 {
		return stripOptionMarkers(numbered, true)
	}
	bulleted := matchingLines(lines, bulletedOptionLine)
	if len(bulleted) >= 2 {
		return stripOptionMarkers(bulleted, false)
	}
	return nil
}

func matchingLines(lines []string, pattern *regexp.Regexp) []string {
	var out []string
	for _, l := range lines {
		if pattern.MatchString(l) {
			out = append(out, l)
		}
	}
	return out
}

var (
	numberedMarker = regexp.MustCompile(`^\s*\d+[.)]\s+`)
	bulletedMarker = regexp.MustCompile(`^\s*[-*]\s+`)
)

func stripOptionMarkers(lines []string, numbered bool) []string {
	marker := bulletedMarker
	if numbered {
		marker = numberedMarker
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(marker.ReplaceAllString(l, ""))
	}
	return out
}

func newRequest(agentID string, typ Type, lines []string, options []string) *Request {
	prompt, promptIdx := lastNonOptionLine(lines)
	context := strings.TrimSpace(strings.Join(lines[:promptIdx], "\n"))
	context = truncateContext(context)

	return &Request{
		AgentID: agentID,
		Type:    typ,
		Prompt:  prompt,
		Options: options,
		Context: context,
		Status:  StatusPending,
	}
}

// lastNonOptionLine returns the last non-empty, non-option line of lines
// (or the whole joined text if none qualify), along with its index so the
// caller can slice out everything preceding it as context.
func lastNonOptionLine(lines []string) (string, int) {
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if numberedOptionLine.MatchString(lines[i]) || bulletedOptionLine.MatchString(lines[i]) {
			continue
		}
		return trimmed, i
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), 0
}

func truncateContext(s string) string {
	if len(s) <= maxContextLen {
		return s
	}
	return "…" + s[len(s)-maxContextLen:]
}
