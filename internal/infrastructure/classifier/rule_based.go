// Package classifier implements the input classifier's three methods:
// rule-based (always available, sub-millisecond), llm-direct, and hybrid.
package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/qi-prompt/qi-prompt/internal/domain/entity"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/domain/valueobject"
)

// CommandPrefix marks a line as a command regardless of any weighted score.
const CommandPrefix = "/"

// RuleBasedConfig holds the weighted-indicator policy's tunables, all
// sourced from config so the thresholds can be adjusted without a rebuild.
type RuleBasedConfig struct {
	WorkflowThreshold float64
	TieBand           float64
	PromptConfMin     float64
	PromptConfMax     float64
}

// DefaultRuleBasedConfig matches spec's stated defaults.
func DefaultRuleBasedConfig() RuleBasedConfig {
	return RuleBasedConfig{
		WorkflowThreshold: 0.7,
		TieBand:           0.05,
		PromptConfMin:     0.5,
		PromptConfMax:     0.95,
	}
}

var (
	connectiveWords = []string{
		"then", "after that", "next", "followed by", "once done", "and then",
		"first", "finally", "afterwards",
	}
	toolVerbs = []string{
		"run", "build", "test", "deploy", "install", "search", "fetch",
		"compile", "execute", "download", "upload", "refactor", "migrate",
		"generate", "analyze",
	}
	fileExtPattern  = regexp.MustCompile(`\.[a-zA-Z0-9]{1,6}\b`)
	filePathPattern = regexp.MustCompile(`@[\w./\-]+`)
	quotedPattern   = regexp.MustCompile(`"[^"]+"|'[^']+'`)
)

// RuleBased is the always-present classification method. Classify must
// return within 1ms for any input — every check below is a bounded string
// scan, no regexp backtracking risk, no I/O.
type RuleBased struct {
	cfg RuleBasedConfig
}

// NewRuleBased builds the rule-based classifier with the given policy.
func NewRuleBased(cfg RuleBasedConfig) *RuleBased {
	return &RuleBased{cfg: cfg}
}

// Classify implements the method signature directly (no ctx use — the
// method never blocks).
func (r *RuleBased) Classify(ctx context.Context, text string, cc *service.ClassifierContext) (*entity.ClassificationResult, error) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" {
		return &entity.ClassificationResult{
			Type:       valueobject.RequestPrompt,
			Confidence: 0,
			Method:     valueobject.MethodRuleBased,
			Prompt:     &entity.PromptData{NormalizedText: ""},
			Reasoning:  "empty input",
		}, nil
	}

	if strings.HasPrefix(trimmed, CommandPrefix) {
		name, argv := parseCommandLine(trimmed[len(CommandPrefix):])
		return &entity.ClassificationResult{
			Type:       valueobject.RequestCommand,
			Confidence: 1.0,
			Method:     valueobject.MethodRuleBased,
			Command:    &entity.CommandData{Name: name, Argv: argv},
			Reasoning:  "command prefix",
		}, nil
	}

	score := workflowScore(trimmed)
	if score > r.cfg.WorkflowThreshold {
		return &entity.ClassificationResult{
			Type:       valueobject.RequestWorkflow,
			Confidence: score,
			Method:     valueobject.MethodRuleBased,
			Workflow:   &entity.WorkflowData{Hint: trimmed},
			Reasoning:  "weighted workflow indicators exceeded threshold",
		}, nil
	}

	confidence := clamp(1-score, r.cfg.PromptConfMin, r.cfg.PromptConfMax)
	return &entity.ClassificationResult{
		Type:       valueobject.RequestPrompt,
		Confidence: confidence,
		Method:     valueobject.MethodRuleBased,
		Prompt:     &entity.PromptData{NormalizedText: trimmed},
		Reasoning:  "below workflow threshold",
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// workflowScore weighs multi-step connectives, tool verbs, file-extension
// tokens, @path sigils, quoted arguments, and word count into [0, 1].
func workflowScore(text string) float64 {
	lower := strings.ToLower(text)
	var score float64

	for _, c := range connectiveWords {
		if strings.Contains(lower, c) {
			score += 0.25
			break
		}
	}

	verbHits := 0
	for _, v := range toolVerbs {
		if strings.Contains(lower, v) {
			verbHits++
		}
	}
	switch {
	case verbHits >= 2:
		score += 0.3
	case verbHits == 1:
		score += 0.15
	}

	if fileExtPattern.MatchString(text) {
		score += 0.15
	}
	if filePathPattern.MatchString(text) {
		score += 0.2
	}
	if quotedPattern.MatchString(text) {
		score += 0.1
	}

	words := strings.Fields(text)
	if len(words) >= 20 {
		score += 0.15
	} else if len(words) >= 12 {
		score += 0.05
	}

	if score > 1 {
		score = 1
	}
	return score
}

// parseCommandLine tokenizes a command line POSIX-style: double- and
// single-quoted spans are single tokens, backslash escapes the next
// character, unquoted whitespace separates tokens.
func parseCommandLine(line string) (string, []string) {
	tokens := tokenize(line)
	if len(tokens) == 0 {
		return "", nil
	}
	return tokens[0], tokens[1:]
}

func tokenize(s string) []string {
	var tokens []string
	var cur strings.Builder
	var inSingle, inDouble, hasToken bool

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\\' && i+1 < len(runes) && !inSingle:
			cur.WriteRune(runes[i+1])
			hasToken = true
			i++
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			hasToken = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			hasToken = true
		case (ch == ' ' || ch == '\t') && !inSingle && !inDouble:
			flush()
		default:
			cur.WriteRune(ch)
			hasToken = true
		}
	}
	flush()
	return tokens
}
