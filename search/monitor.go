package search

import (
	"github.com/poiesic/moodshelf/core"
	"github.com/poiesic/moodshelf/vectorindex"
)

// RejectReason says why a candidate was dropped.
type RejectReason string

const (
	RejectNoMatch RejectReason = "no_match"
	RejectMood    RejectReason = "mood"
	RejectRating  RejectReason = "rating"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(q Query)
	AfterIndexSearch(k int, neighbors []vectorindex.Neighbor)
	Rejected(position int, reason RejectReason)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                                   {}
func (n *noopMonitor) AfterIndexSearch(_ int, _ []vectorindex.Neighbor) {}
func (n *noopMonitor) Rejected(_ int, _ RejectReason)                  {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                   {}
