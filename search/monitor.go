package search

import (
	"github.com/poiesic/imgfeat/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(ref core.Reference)
	AfterFeaturize(vector []float32)
	AfterSimilaritySearch(matches []*core.SearchResult)
	LabelHit(artifact *core.Artifact, label string)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ core.Reference)                       {}
func (n *noopMonitor) AfterFeaturize(_ []float32)                   {}
func (n *noopMonitor) AfterSimilaritySearch(_ []*core.SearchResult) {}
func (n *noopMonitor) LabelHit(_ *core.Artifact, _ string)          {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                {}
