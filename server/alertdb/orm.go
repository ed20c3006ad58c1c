package alertdb

import (
	"path/filepath"

	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

// An alert, as accepted by the alert gate.
// SYNC-ALERTDB-ALERT
type Alert struct {
	BaseModel
	PublicID       string      `json:"publicID"` // eg "alert_1740000000000", stable across restarts
	Time           dbh.IntTime `json:"time"`
	Level          string      `json:"level"`
	Message        string      `json:"message"`
	Zone           string      `json:"zone,omitempty"`
	DetectionCount int         `json:"detectionCount"`
	Acknowledged   bool        `json:"acknowledged"`
}

// A per-frame detection summary for one camera.
// We write one of these per analyzed frame that contained detections,
// so the table doubles as an activity log.
// SYNC-ALERTDB-DETECTION
type Detection struct {
	BaseModel
	Camera  string                           `json:"camera"`
	Time    dbh.IntTime                      `json:"time"`
	Count   int                              `json:"count"`
	Objects *dbh.JSONField[[]DetectedObject] `json:"objects"`
}

// One detected object inside a Detection record.
// SYNC-ALERTDB-OBJECT
type DetectedObject struct {
	Class      string     `json:"class"`
	Confidence float32    `json:"confidence"`
	Box        [4]float32 `json:"box"` // [X1,Y1,X2,Y2]
}

// A JPEG saved to disk when an alert fired.
// SYNC-ALERTDB-SCREENSHOT
type Screenshot struct {
	BaseModel
	AlertPublicID string      `json:"alertPublicID"`
	Camera        string      `json:"camera"`
	Time          dbh.IntTime `json:"time"`
	FileName      string      `json:"fileName"` // Relative to the screenshots directory
}

func (s *Screenshot) FullPath(screenshotDir string) string {
	return filepath.Join(screenshotDir, s.FileName)
}
