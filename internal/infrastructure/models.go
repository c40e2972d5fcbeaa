package infrastructure

import (
	"context"
	"errors"

	"github.com/i474232898/infrastructure-risk/internal/geo"
)

// Type classifies a discovered infrastructure feature.
type Type string

const (
	TypeRoad           Type = "road"
	TypeBridge         Type = "bridge"
	TypeRailwayStation Type = "railway_station"
)

// Record is a deduplicated, typed infrastructure feature.
// Name is unique within one discovery run.
type Record struct {
	ID       int               `json:"id"`
	Name     string            `json:"name"`
	Type     Type              `json:"type"`
	Location geo.Coordinate    `json:"location"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// Way is a map element built from an ordered list of node references.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// Node is a single map point. Location is nil when the backend omitted it.
type Node struct {
	ID       int64
	Location *geo.Coordinate
	Tags     map[string]string
}

// Elements is a map-query response split by element kind, each kind in
// response order.
type Elements struct {
	Ways  []Way
	Nodes []Node
}

// Len returns the total number of elements.
func (e Elements) Len() int {
	return len(e.Ways) + len(e.Nodes)
}

// ErrRateLimited marks a map-query failure caused by the backend being busy.
var ErrRateLimited = errors.New("map backend busy or rate limited")

// MapQuerier executes a raw Overpass QL query.
type MapQuerier interface {
	Query(ctx context.Context, query string) (Elements, error)
}
