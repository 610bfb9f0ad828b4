package context

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	domaincontext "github.com/qi-prompt/qi-prompt/internal/domain/context"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
	"github.com/qi-prompt/qi-prompt/internal/infrastructure/codeintel"
)

// repoMapExcludes keeps the background indexer out of directories that
// would otherwise dominate the symbol graph with generated or vendored code.
var repoMapExcludes = []string{".git", "node_modules", "vendor", "_examples"}

// repoMapBudget bounds the repo map fragment independent of the caller's
// overall budgetTokens, so it never crowds out every other fragment.
const repoMapBudget = 1000

// perSourceChunkCap bounds how many fragments from a single source may
// enter the packed context, so one giant file can't crowd out everything
// else competing for the same budget.
const perSourceChunkCap = 3

const truncationMarker = "\n... [context truncated: budget exceeded]"

var _ service.ContextAssembler = (*Assembler)(nil)

// Assembler implements service.ContextAssembler's AssembleContext half.
// ExpandReferences lives on Expander; Assembler composes one to satisfy
// the full interface.
type Assembler struct {
	*Expander
	tokenizer domaincontext.Tokenizer
	persona   *PersonaLoader
	repoMap   *codeintel.RepoMap
	logger    *zap.Logger
}

// NewAssembler builds an Assembler over workspaceRoot, optionally loading
// persona fragments from personaDir (pass "" to skip). It indexes
// workspaceRoot once for the repo map the hierarchical strategy injects;
// indexing failures are logged and leave the repo map empty rather than
// failing construction.
func NewAssembler(workspaceRoot, personaDir string, logger *zap.Logger) *Assembler {
	indexer := codeintel.NewIndexer(logger)
	if _, err := indexer.IndexDirectory(workspaceRoot, repoMapExcludes); err != nil {
		logger.Warn("repo map indexing failed", zap.Error(err))
	}

	return &Assembler{
		Expander:  NewExpander(workspaceRoot, logger),
		tokenizer: domaincontext.NewSimpleTokenizer(),
		persona:   NewPersonaLoader(personaDir),
		repoMap:   codeintel.NewRepoMap(indexer, logger),
		logger:    logger,
	}
}

// candidate is a scored fragment pending greedy selection.
type candidate struct {
	fragment service.ContextFragment
	score    float64
}

// AssembleContext implements service.ContextAssembler.
func (a *Assembler) AssembleContext(ctx context.Context, query string, resolvedFiles []service.ResolvedFile, retrievalHits []service.RetrievalHit, budgetTokens int) (*service.AssembledContext, error) {
	strategy := chooseStrategy(query)

	candidates := a.buildCandidates(query, resolvedFiles, retrievalHits, strategy)
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	fragments, estimated, truncated := a.pack(candidates, budgetTokens)

	return &service.AssembledContext{
		Strategy:        strategy,
		Fragments:       fragments,
		EstimatedTokens: estimated,
		Truncated:       truncated,
	}, nil
}

// chooseStrategy picks an AssemblyStrategy from keyword cues in the query,
// per spec's intent-heuristic packing policy.
func chooseStrategy(query string) service.AssemblyStrategy {
	lower := strings.ToLower(query)
	switch {
	case containsAny(lower, "compare", "versus", " vs ", "difference between"):
		return service.StrategyThematic
	case containsAny(lower, "step by step", "then", "first,", "next,", "after that"):
		return service.StrategySequential
	case containsAny(lower, "refactor", "implement", "fix", "bug", "function", "class", "package"):
		return service.StrategyHierarchical
	default:
		return service.StrategyBalanced
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// buildCandidates assigns each persona fragment, resolved file, and
// retrieval hit a relevance score. Persona fragments always sort first
// (they define operating rules, not optional enrichment); files and
// retrieval hits are scored by strategy-specific heuristics.
func (a *Assembler) buildCandidates(query string, files []service.ResolvedFile, hits []service.RetrievalHit, strategy service.AssemblyStrategy) []candidate {
	var out []candidate

	for _, frag := range a.persona.Load() {
		out = append(out, candidate{fragment: frag, score: 1000})
	}

	if strategy == service.StrategyHierarchical && a.repoMap != nil {
		var text string
		if names := fileNames(files); len(names) > 0 {
			text = a.repoMap.GenerateForFiles(names, repoMapBudget)
		} else {
			text = a.repoMap.Generate(repoMapBudget)
		}
		out = append(out, candidate{
			fragment: service.ContextFragment{Source: "repo-map", Text: text},
			score:    900,
		})
	}

	for _, f := range files {
		out = append(out, candidate{
			fragment: service.ContextFragment{Source: f.Path, Text: f.Content},
			score:    scoreFile(f, query, strategy),
		})
	}

	for _, h := range hits {
		out = append(out, candidate{
			fragment: service.ContextFragment{Source: h.Source, Text: h.Text},
			score:    h.Score,
		})
	}

	return out
}

func scoreFile(f service.ResolvedFile, query string, strategy service.AssemblyStrategy) float64 {
	score := 10.0
	lowerQuery := strings.ToLower(query)
	lowerPath := strings.ToLower(f.Path)

	base := lowerPath
	if idx := strings.LastIndexByte(base, '/'); idx >= 0 {
		base = base[idx+1:]
	}
	if strings.Contains(lowerQuery, strings.TrimSuffix(base, extOf(base))) {
		score += 5
	}
	if f.Truncated {
		score -= 1
	}
	if strategy == service.StrategyHierarchical {
		score += 2
	}
	return score
}

func fileNames(files []service.ResolvedFile) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Path
	}
	return names
}

func extOf(name string) string {
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx:]
	}
	return ""
}

// pack greedily selects candidates in descending score order into budgetTokens,
// capping fragments per source for diversity, and truncates the tail on
// overflow with a marker appended to the last fragment kept.
func (a *Assembler) pack(candidates []candidate, budgetTokens int) ([]service.ContextFragment, int, bool) {
	var fragments []service.ContextFragment
	perSource := make(map[string]int)
	total := 0
	truncated := false

	for _, c := range candidates {
		if perSource[c.fragment.Source] >= perSourceChunkCap {
			truncated = true
			continue
		}

		tokens := a.tokenizer.Count(c.fragment.Text)
		if budgetTokens > 0 && total+tokens > budgetTokens {
			truncated = true
			continue
		}

		fragments = append(fragments, c.fragment)
		perSource[c.fragment.Source]++
		total += tokens
	}

	if truncated && len(fragments) > 0 {
		last := fragments[len(fragments)-1]
		last.Text += truncationMarker
		fragments[len(fragments)-1] = last
	}

	return fragments, total, truncated
}
