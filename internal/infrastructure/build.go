package infrastructure

import (
	"errors"
	"fmt"
	"log"
	"maps"

	"github.com/i474232898/infrastructure-risk/internal/geo"
)

var errSkip = errors.New("element not infrastructure")

// builder accumulates records for one discovery run.
type builder struct {
	records []Record
	seen    map[string]struct{}
	nodes   map[int64]Node
	skipped int
}

// Build turns raw map elements into records: ways first, then nodes, each in
// response order. Names are deduplicated and IDs assigned 1..n in acceptance
// order. An element that cannot be processed is skipped on its own.
func Build(elems Elements) ([]Record, int) {
	b := &builder{
		records: make([]Record, 0),
		seen:    make(map[string]struct{}),
		nodes:   make(map[int64]Node, len(elems.Nodes)),
	}
	for _, n := range elems.Nodes {
		b.nodes[n.ID] = n
	}

	for _, w := range elems.Ways {
		b.accept("way", w.ID, func() (Record, error) { return b.fromWay(w) })
	}
	for _, n := range elems.Nodes {
		b.accept("node", n.ID, func() (Record, error) { return b.fromNode(n) })
	}
	return b.records, b.skipped
}

func (b *builder) accept(kind string, id int64, build func() (Record, error)) {
	rec, err := guard(build)
	if errors.Is(err, errSkip) {
		return
	}
	if err != nil {
		log.Printf("discovery: error processing %s %d: %v", kind, id, err)
		b.skipped++
		return
	}
	if _, dup := b.seen[rec.Name]; dup {
		return
	}
	b.seen[rec.Name] = struct{}{}
	rec.ID = len(b.records) + 1
	b.records = append(b.records, rec)
}

func (b *builder) fromWay(w Way) (Record, error) {
	var t Type
	switch {
	case w.Tags["bridge"] == "yes":
		t = TypeBridge
	case hasTag(w.Tags, "highway"):
		t = TypeRoad
	default:
		return Record{}, errSkip
	}

	points := make([]geo.Coordinate, 0, len(w.NodeIDs))
	for _, ref := range w.NodeIDs {
		n, ok := b.nodes[ref]
		if !ok || n.Location == nil {
			return Record{}, fmt.Errorf("unresolved node %d", ref)
		}
		points = append(points, *n.Location)
	}
	center, err := geo.Centroid(points)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Name:     b.name(w.Tags, t),
		Type:     t,
		Location: center,
		Tags:     maps.Clone(w.Tags),
	}, nil
}

func (b *builder) fromNode(n Node) (Record, error) {
	if n.Tags["railway"] != "station" {
		return Record{}, errSkip
	}
	if n.Location == nil || !n.Location.Valid() {
		return Record{}, errors.New("station without a usable location")
	}
	return Record{
		Name:     b.name(n.Tags, TypeRailwayStation),
		Type:     TypeRailwayStation,
		Location: *n.Location,
		Tags:     maps.Clone(n.Tags),
	}, nil
}

// name prefers the name tag and otherwise synthesizes "<Label> <n>" where n
// is the number of records accepted so far plus one.
func (b *builder) name(tags map[string]string, t Type) string {
	if name, ok := tags["name"]; ok {
		return name
	}
	return fmt.Sprintf("%s %d", t.label(), len(b.records)+1)
}

func (t Type) label() string {
	switch t {
	case TypeBridge:
		return "Bridge"
	case TypeRoad:
		return "Road"
	case TypeRailwayStation:
		return "Station"
	default:
		return string(t)
	}
}

func hasTag(tags map[string]string, key string) bool {
	_, ok := tags[key]
	return ok
}

// guard runs build, converting a panic into an error.
func guard(build func() (Record, error)) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return build()
}
