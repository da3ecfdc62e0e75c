package s2

// https://s2geometry.io/resources/s2cell_statistics.html

// CellLevel represents the S2 cell level, from 0-30.
type CellLevel int

const (
	// CellLevel0 covers earth in 6 cells.
	CellLevel0 CellLevel = 0

	// CellLevel8 is about a day's ride across.
	CellLevel8 CellLevel = 8

	// CellLevel13 is about a kilometer on an edge.
	CellLevel13 CellLevel = 13

	// CellLevel16 is approximately 140m on an edge, a few blocks of riding.
	CellLevel16 CellLevel = 16

	// CellLevel23 is approximately a human body; 1 square meter.
	CellLevel23 CellLevel = 23

	CellLevel30 CellLevel = 30
)

// WaypointCellLevel buckets waypoints coarsely enough to group
// a stretch of road, finely enough to tell streets apart.
const WaypointCellLevel = CellLevel16

func (l CellLevel) Valid() bool {
	return l >= CellLevel0 && l <= CellLevel30
}
