package shikimori

import "github.com/justchokingaround/shikiplay/internal/tracker"

// Image holds the poster paths of an anime
type Image struct {
	Original string `json:"original"`
	Preview  string `json:"preview"`
}

// Anime is the subset of /api/animes/{id} the player needs
type Anime struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	Russian       string    `json:"russian"`
	Kind          string    `json:"kind"`
	Episodes      int       `json:"episodes"`
	EpisodesAired int       `json:"episodes_aired"`
	Image         Image     `json:"image"`
	UserRate      *UserRate `json:"user_rate"`
}

// DisplayName prefers the Russian title
func (a *Anime) DisplayName() string {
	if a.Russian != "" {
		return a.Russian
	}
	return a.Name
}

// UserRate is the viewer's list entry for an anime
type UserRate struct {
	ID         int                 `json:"id,omitempty"`
	UserID     int                 `json:"user_id,omitempty"`
	TargetID   int                 `json:"target_id,omitempty"`
	TargetType string              `json:"target_type,omitempty"`
	Status     tracker.WatchStatus `json:"status,omitempty"`
	Score      int                 `json:"score,omitempty"`
	Episodes   int                 `json:"episodes"`
	Rewatches  int                 `json:"rewatches,omitempty"`
}

// User is the authenticated viewer
type User struct {
	ID       int    `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
}

// FranchiseLink is a directed relation between two franchise nodes
type FranchiseLink struct {
	ID       int    `json:"id"`
	SourceID int    `json:"source_id"`
	TargetID int    `json:"target_id"`
	Relation string `json:"relation"`
}

// FranchiseNode is one anime of a franchise
type FranchiseNode struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
	Year int    `json:"year,omitempty"`
}

// Franchise is the relation graph of /api/animes/{id}/franchise
type Franchise struct {
	Links []FranchiseLink `json:"links"`
	Nodes []FranchiseNode `json:"nodes"`
}

// Sequel returns the node linked from sourceID by a "sequel" edge
func (f *Franchise) Sequel(sourceID int) (*FranchiseNode, bool) {
	for _, l := range f.Links {
		if l.SourceID != sourceID || l.Relation != "sequel" {
			continue
		}
		for i := range f.Nodes {
			if f.Nodes[i].ID == l.TargetID {
				return &f.Nodes[i], true
			}
		}
		return nil, false
	}
	return nil, false
}
