package context

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/prompt"
)

// PersonaLoader reads the `.qi-prompt/persona` markdown fragment tree
// bootstrap.go creates on first launch, re-reading from disk every call so
// edits take effect on the next turn without a restart.
type PersonaLoader struct {
	dir string
}

// NewPersonaLoader builds a loader rooted at dir. An empty dir disables
// persona loading — Load then always returns nil.
func NewPersonaLoader(dir string) *PersonaLoader {
	return &PersonaLoader{dir: dir}
}

// Load reads every `.md` fragment under dir (including `variants/`),
// sorted by ascending priority, and returns them as ContextFragments
// labelled by file path.
func (p *PersonaLoader) Load() []service.ContextFragment {
	if p.dir == "" {
		return nil
	}

	var components []*prompt.PromptComponent
	_ = filepath.WalkDir(p.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		comp, parseErr := prompt.ParsePromptFile(path)
		if parseErr != nil {
			return nil
		}
		components = append(components, comp)
		return nil
	})

	sort.SliceStable(components, func(i, j int) bool { return components[i].Priority < components[j].Priority })

	fragments := make([]service.ContextFragment, 0, len(components))
	for _, c := range components {
		fragments = append(fragments, service.ContextFragment{Source: c.FilePath, Text: c.Content})
	}
	return fragments
}
