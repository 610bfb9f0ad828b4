// Package context implements domain/service.ContextAssembler: `@path`
// reference expansion and budget-bounded context packing.
package context

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
)

// refPattern matches an `@`-prefixed path token: `@` followed by a run of
// path-safe characters, stopping at whitespace or a closing punctuation.
var refPattern = regexp.MustCompile(`@([\w./\-]+)`)

// MaxFileBytes bounds how much of any one referenced file is read before
// truncation, keeping a single bad `@path` from blowing the token budget.
const MaxFileBytes = 64 * 1024

// Expander implements ExpandReferences against a fixed workspace root.
type Expander struct {
	workspaceRoot string
	logger        *zap.Logger
}

// NewExpander builds an Expander rooted at workspaceRoot. References are
// resolved relative to this root (a leading `/` is joined under it too);
// references that climb out of it with `..` are rejected as unresolved
// rather than followed, so `@path` can't escape the workspace.
func NewExpander(workspaceRoot string, logger *zap.Logger) *Expander {
	return &Expander{workspaceRoot: workspaceRoot, logger: logger}
}

// ExpandReferences implements service.ContextAssembler.
func (e *Expander) ExpandReferences(ctx context.Context, text string) (string, []service.ResolvedFile, error) {
	matches := refPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil, nil
	}

	var out bytes.Buffer
	var resolved []service.ResolvedFile
	last := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		rel := text[m[2]:m[3]]

		out.WriteString(text[last:start])
		last = end

		full, content, truncated, err := e.readFile(rel)
		if err != nil {
			out.WriteString(fmt.Sprintf("@%s [unresolved: %s]", rel, err.Error()))
			continue
		}

		out.WriteString(fmt.Sprintf("@%s", rel))
		resolved = append(resolved, service.ResolvedFile{
			Path:      full,
			Content:   content,
			Truncated: truncated,
		})
	}
	out.WriteString(text[last:])

	return out.String(), resolved, nil
}

// readFile resolves rel against the workspace root and reads it, bounded
// by MaxFileBytes. Returns the resolved path (for labelling) even on
// failure paths that never reach here — callers only see the error.
func (e *Expander) readFile(rel string) (string, string, bool, error) {
	full := filepath.Join(e.workspaceRoot, rel)
	cleanRoot := filepath.Clean(e.workspaceRoot)
	if !isWithin(cleanRoot, full) {
		return full, "", false, fmt.Errorf("outside workspace")
	}

	info, err := os.Stat(full)
	if err != nil {
		return full, "", false, fmt.Errorf("not found")
	}
	if info.IsDir() {
		return full, "", false, fmt.Errorf("is a directory")
	}

	f, err := os.Open(full)
	if err != nil {
		return full, "", false, fmt.Errorf("open failed")
	}
	defer f.Close()

	buf := make([]byte, MaxFileBytes+1)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return full, "", false, fmt.Errorf("read failed")
	}

	truncated := n > MaxFileBytes
	if truncated {
		n = MaxFileBytes
	}
	content := string(buf[:n])
	if truncated {
		content += "\n... [truncated]"
	}
	return full, content, truncated, nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !bytes.HasPrefix([]byte(rel), []byte(".."+string(filepath.Separator)))
}
