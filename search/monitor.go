package search

import (
	"github.com/poiesic/expertfinder/core"
	"github.com/poiesic/expertfinder/storage"
)

// SearchMonitor provides hooks to observe the hybrid search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(ids []core.Identifier)
	AfterKeywordSearch(ids []core.Identifier)
	SemanticAndKeywordHit(doc *core.Document)
	SemanticHit(doc *core.Document)
	KeywordHit(doc *core.Document)
	Finish(results []storage.ScoredDocument)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.Identifier) {}
func (n *noopMonitor) AfterKeywordSearch(_ []core.Identifier)  {}
func (n *noopMonitor) SemanticAndKeywordHit(_ *core.Document)  {}
func (n *noopMonitor) SemanticHit(_ *core.Document)            {}
func (n *noopMonitor) KeywordHit(_ *core.Document)             {}
func (n *noopMonitor) Finish(_ []storage.ScoredDocument)       {}
