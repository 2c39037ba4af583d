package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrLinkBadInput = errors.New("invalid link")
	ErrEmptyLinkID  = errors.New("empty link ID")
)

// Link is a committed bidirectional RF link. Forward is NodeA -> NodeB and
// NodeA always sorts before NodeB.
type Link struct {
	ID      string
	NodeA   string
	NodeB   string
	Forward DirectedLink
	Reverse DirectedLink

	// PassID identifies the recomputation pass that last wrote the link.
	PassID string
}

// NewLink builds a link with canonical orientation: if a sorts after b the
// endpoints and directions are swapped.
func NewLink(a, b string, forward, reverse DirectedLink) *Link {
	if b < a {
		a, b = b, a
		forward, reverse = reverse, forward
	}
	return &Link{
		ID:      LinkID(a, b),
		NodeA:   a,
		NodeB:   b,
		Forward: forward,
		Reverse: reverse,
	}
}

// linkIDEscaper escapes the separator so distinct node pairs never share
// an ID, whatever characters the node IDs contain.
var linkIDEscaper = strings.NewReplacer(`\`, `\\`, "|", `\|`)

// LinkID is symmetric: LinkID(a, b) == LinkID(b, a). It has the form
// "rf:<a>|<b>" with a <= b and '|' and '\' escaped in both IDs.
func LinkID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "rf:" + linkIDEscaper.Replace(a) + "|" + linkIDEscaper.Replace(b)
}

// RoutingGraph is the externally owned graph the committer mutates.
// Implementations need not be safe for concurrent mutation; the engine
// commits from a single goroutine at a time.
type RoutingGraph interface {
	UpsertLink(link *Link) error
	RemoveLink(id string) error
	LinkIDs() []string
}

// LinkGraph is an in-memory RoutingGraph with per-node adjacency.
//
// It is concurrency-safe via an internal RWMutex so readers (path-finding,
// presentation) may query it while the engine commits.
type LinkGraph struct {
	mu sync.RWMutex

	links       map[string]*Link
	linksByNode map[string]map[string]*Link
}

// NewLinkGraph creates an empty graph.
func NewLinkGraph() *LinkGraph {
	return &LinkGraph{
		links:       make(map[string]*Link),
		linksByNode: make(map[string]map[string]*Link),
	}
}

// UpsertLink inserts or replaces the link with the same ID.
func (g *LinkGraph) UpsertLink(link *Link) error {
	if link == nil || link.NodeA == "" || link.NodeB == "" || link.NodeA == link.NodeB {
		return fmt.Errorf("%w", ErrLinkBadInput)
	}
	if link.ID == "" {
		return fmt.Errorf("%w", ErrEmptyLinkID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.links[link.ID]; ok {
		g.detach(link.ID, prev.NodeA)
		g.detach(link.ID, prev.NodeB)
	}
	g.links[link.ID] = link
	g.attach(link.ID, link.NodeA)
	g.attach(link.ID, link.NodeB)
	return nil
}

// RemoveLink removes a link by ID and cleans up adjacency state.
func (g *LinkGraph) RemoveLink(id string) error {
	if id == "" {
		return fmt.Errorf("%w", ErrEmptyLinkID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	link, exists := g.links[id]
	if !exists {
		return fmt.Errorf("%w: %q", ErrLinkNotFound, id)
	}
	g.detach(id, link.NodeA)
	g.detach(id, link.NodeB)
	delete(g.links, id)
	return nil
}

// LinkIDs returns the IDs of all committed links, sorted.
func (g *LinkGraph) LinkIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.links))
	for id := range g.links {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Link returns a single link by ID, or nil if missing.
func (g *LinkGraph) Link(id string) *Link {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.links[id]
}

// LinkBetween returns the link joining two nodes, or nil.
func (g *LinkGraph) LinkBetween(a, b string) *Link {
	return g.Link(LinkID(a, b))
}

// Links returns all links sorted by ID.
func (g *LinkGraph) Links() []*Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LinksForNode returns all links attached to a node.
func (g *LinkGraph) LinksForNode(nodeID string) []*Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	m, ok := g.linksByNode[nodeID]
	if !ok {
		return nil
	}
	out := make([]*Link, 0, len(m))
	for _, l := range m {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Neighbours returns the sorted IDs of nodes linked to nodeID.
func (g *LinkGraph) Neighbours(nodeID string) []string {
	if nodeID == "" {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]string, 0, len(g.linksByNode[nodeID]))
	for _, link := range g.linksByNode[nodeID] {
		if link.NodeA == nodeID {
			out = append(out, link.NodeB)
		} else {
			out = append(out, link.NodeA)
		}
	}
	sort.Strings(out)
	return out
}

// Clear removes every link.
func (g *LinkGraph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.links = make(map[string]*Link)
	g.linksByNode = make(map[string]map[string]*Link)
}

// attach records linkID in the node's adjacency map.
//
// NOTE: caller must hold g.mu (write lock).
func (g *LinkGraph) attach(linkID, nodeID string) {
	m, ok := g.linksByNode[nodeID]
	if !ok {
		m = make(map[string]*Link)
		g.linksByNode[nodeID] = m
	}
	m[linkID] = g.links[linkID]
}

// detach removes linkID from the node's adjacency map.
//
// NOTE: caller must hold g.mu (write lock).
func (g *LinkGraph) detach(linkID, nodeID string) {
	if m, ok := g.linksByNode[nodeID]; ok {
		delete(m, linkID)
		if len(m) == 0 {
			delete(g.linksByNode, nodeID)
		}
	}
}

// CommitStats summarises one commit.
type CommitStats struct {
	Upserted int
	Removed  int
}

// Commit applies a pass's decisions to the graph: accepted pairs are
// upserted with both directions, and every existing link whose pair was not
// accepted is removed. It must only run after the pipeline barrier.
func Commit(graph RoutingGraph, decisions []PairDecision, passID string) (CommitStats, error) {
	var stats CommitStats
	keep := make(map[string]struct{}, len(decisions))

	for _, d := range decisions {
		if !d.Accepted {
			continue
		}
		link := NewLink(d.NodeA, d.NodeB, d.Forward, d.Reverse)
		link.PassID = passID
		if err := graph.UpsertLink(link); err != nil {
			return stats, fmt.Errorf("upsert %s: %w", link.ID, err)
		}
		keep[link.ID] = struct{}{}
		stats.Upserted++
	}

	for _, id := range graph.LinkIDs() {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := graph.RemoveLink(id); err != nil {
			if errors.Is(err, ErrLinkNotFound) {
				continue
			}
			return stats, fmt.Errorf("remove %s: %w", id, err)
		}
		stats.Removed++
	}
	return stats, nil
}
