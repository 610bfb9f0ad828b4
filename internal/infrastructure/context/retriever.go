package context

import (
	"context"

	"github.com/qi-prompt/qi-prompt/internal/domain/memory"
	"github.com/qi-prompt/qi-prompt/internal/domain/service"
)

// MemoryRetriever implements service.Retriever over a memory.MemoryManager,
// turning the assembler's topK query into a Recall call and MemoryEntry
// results into scored RetrievalHit fragments.
type MemoryRetriever struct {
	manager   *memory.MemoryManager
	sessionID string
}

// NewMemoryRetriever builds a MemoryRetriever scoped to sessionID; pass ""
// to search across all sessions.
func NewMemoryRetriever(manager *memory.MemoryManager, sessionID string) *MemoryRetriever {
	return &MemoryRetriever{manager: manager, sessionID: sessionID}
}

var _ service.Retriever = (*MemoryRetriever)(nil)

// Search recalls the topK memories nearest query, scoped to the
// retriever's session when one was configured.
func (r *MemoryRetriever) Search(ctx context.Context, query string, topK int) ([]service.RetrievalHit, error) {
	var filter *memory.SearchFilter
	if r.sessionID != "" {
		filter = &memory.SearchFilter{SessionID: r.sessionID}
	}

	entries, err := r.manager.Recall(ctx, query, topK, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]service.RetrievalHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, service.RetrievalHit{
			Source: "memory:" + e.ID,
			Text:   e.Content,
			Score:  float64(e.Score),
		})
	}
	return hits, nil
}

// Remember delegates to the underlying manager so the orchestrator can
// feed completed exchanges back into long-term memory.
func (r *MemoryRetriever) Remember(ctx context.Context, content string) error {
	metadata := map[string]interface{}{}
	if r.sessionID != "" {
		metadata["session_id"] = r.sessionID
	}
	_, err := r.manager.Remember(ctx, content, metadata)
	return err
}
