package infrastructure

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/i474232898/infrastructure-risk/internal/geo"
)

const queryHeader = "[out:json][timeout:90];"

// AreaQuery selects primary/secondary roads, bridges and railway stations
// around center that also fall inside the area named area.
func AreaQuery(area string, center geo.Coordinate, radiusMeters float64) string {
	around := aroundFilter(center, radiusMeters)
	name := strings.ReplaceAll(area, `"`, `\"`)

	var b strings.Builder
	b.WriteString(queryHeader)
	fmt.Fprintf(&b, "\narea[name=\"%s\"]->.searchArea;\n(\n", name)
	fmt.Fprintf(&b, "  way[\"highway\"=\"primary\"](area.searchArea)%s;\n", around)
	fmt.Fprintf(&b, "  way[\"highway\"=\"secondary\"](area.searchArea)%s;\n", around)
	fmt.Fprintf(&b, "  way[\"bridge\"=\"yes\"](area.searchArea)%s;\n", around)
	fmt.Fprintf(&b, "  node[\"railway\"=\"station\"](area.searchArea)%s;\n", around)
	b.WriteString(");\n(._;>;);\nout body;\nout skel qt;\n")
	return b.String()
}

// AroundQuery is the radius-only variant of AreaQuery.
func AroundQuery(center geo.Coordinate, radiusMeters float64) string {
	around := aroundFilter(center, radiusMeters)

	var b strings.Builder
	b.WriteString(queryHeader)
	b.WriteString("\n(\n")
	fmt.Fprintf(&b, "  node[\"railway\"=\"station\"]%s;\n", around)
	fmt.Fprintf(&b, "  way[\"highway\"=\"primary\"]%s;\n", around)
	fmt.Fprintf(&b, "  way[\"highway\"=\"secondary\"]%s;\n", around)
	fmt.Fprintf(&b, "  way[\"bridge\"=\"yes\"]%s;\n", around)
	b.WriteString(");\n(._;>;);\nout body;\nout skel qt;\n")
	return b.String()
}

func aroundFilter(center geo.Coordinate, radiusMeters float64) string {
	return fmt.Sprintf("(around:%s,%s,%s)",
		strconv.FormatFloat(radiusMeters, 'f', -1, 64),
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64),
	)
}
