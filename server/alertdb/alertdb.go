package alertdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/areawatch/areawatch/server/alerts"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// AlertDB persists alerts, per-frame detection summaries, and alert
// screenshots. The SQLite DB and the screenshot files live under one
// root directory, so retention can clean both together.
type AlertDB struct {
	log  logs.Log
	db   *gorm.DB
	root string
}

// Statistics over a queried time window.
type Statistics struct {
	Alerts         int64 `json:"alerts"`
	Unacknowledged int64 `json:"unacknowledged"`
	Critical       int64 `json:"critical"`
	Warning        int64 `json:"warning"`
	Info           int64 `json:"info"`
	Detections     int64 `json:"detections"`
	Screenshots    int64 `json:"screenshots"`
}

// Open or create an alert DB
func Open(logger logs.Log, root string) (*AlertDB, error) {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0770); err != nil {
		return nil, fmt.Errorf("Failed to create alert DB storage path '%v': %w", root, err)
	}
	if err := os.MkdirAll(filepath.Join(root, "screenshots"), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create screenshot storage path: %w", err)
	}

	logger.Infof("Opening alert DB at '%v'", root)
	dbPath := filepath.Join(root, "alerts.sqlite")
	db, err := dbh.OpenDB(logger, dbh.MakeSqliteConfig(dbPath), Migrations(logger), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open alert database %v: %w", dbPath, err)
	}

	return &AlertDB{
		log:  logger,
		db:   db,
		root: root,
	}, nil
}

func (a *AlertDB) ScreenshotDir() string {
	return filepath.Join(a.root, "screenshots")
}

// AddAlert records an alert accepted by the gate.
func (a *AlertDB) AddAlert(alert *alerts.Alert) error {
	rec := &Alert{
		PublicID:       alert.ID,
		Time:           dbh.MakeIntTime(alert.Time),
		Level:          string(alert.Level),
		Message:        alert.Message,
		Zone:           alert.ZoneID,
		DetectionCount: alert.DetectionCount,
	}
	return a.db.Create(rec).Error
}

// SetAcknowledged marks an alert record as acknowledged, by its public ID.
func (a *AlertDB) SetAcknowledged(publicID string) error {
	return a.db.Model(&Alert{}).Where("public_id = ?", publicID).Update("acknowledged", true).Error
}

// RecentAlerts returns up to limit alerts, newest first.
func (a *AlertDB) RecentAlerts(limit int) ([]Alert, error) {
	recs := []Alert{}
	err := a.db.Order("time DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// AlertsBetween returns alerts with start <= time < end, oldest first.
func (a *AlertDB) AlertsBetween(start, end time.Time) ([]Alert, error) {
	recs := []Alert{}
	err := a.db.Where("time >= ? AND time < ?", start.UnixMilli(), end.UnixMilli()).Order("time").Find(&recs).Error
	return recs, err
}

// AddDetection records the detection summary of one analyzed frame.
func (a *AlertDB) AddDetection(camera string, at time.Time, objects []DetectedObject) error {
	rec := &Detection{
		Camera:  camera,
		Time:    dbh.MakeIntTime(at),
		Count:   len(objects),
		Objects: &dbh.JSONField[[]DetectedObject]{Data: objects},
	}
	return a.db.Create(rec).Error
}

// DetectionsBetween returns detection records for one camera, oldest first.
// An empty camera matches all cameras.
func (a *AlertDB) DetectionsBetween(camera string, start, end time.Time) ([]Detection, error) {
	recs := []Detection{}
	q := a.db.Where("time >= ? AND time < ?", start.UnixMilli(), end.UnixMilli())
	if camera != "" {
		q = q.Where("camera = ?", camera)
	}
	err := q.Order("time").Find(&recs).Error
	return recs, err
}

// AddScreenshot writes the JPEG to disk and records it.
func (a *AlertDB) AddScreenshot(alertPublicID, camera string, at time.Time, jpeg []byte) (*Screenshot, error) {
	rec := &Screenshot{
		AlertPublicID: alertPublicID,
		Camera:        camera,
		Time:          dbh.MakeIntTime(at),
		FileName:      fmt.Sprintf("%v_%v.jpg", alertPublicID, camera),
	}
	if err := os.WriteFile(rec.FullPath(a.ScreenshotDir()), jpeg, 0660); err != nil {
		return nil, fmt.Errorf("Failed to write screenshot: %w", err)
	}
	if err := a.db.Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ScreenshotsForAlert returns the screenshot records of one alert.
func (a *AlertDB) ScreenshotsForAlert(alertPublicID string) ([]Screenshot, error) {
	recs := []Screenshot{}
	err := a.db.Where("alert_public_id = ?", alertPublicID).Order("time").Find(&recs).Error
	return recs, err
}

// GetStatistics computes counts over [start, end).
func (a *AlertDB) GetStatistics(start, end time.Time) (*Statistics, error) {
	stats := &Statistics{}
	window := func(model any) *gorm.DB {
		return a.db.Model(model).Where("time >= ? AND time < ?", start.UnixMilli(), end.UnixMilli())
	}
	if err := window(&Alert{}).Count(&stats.Alerts).Error; err != nil {
		return nil, err
	}
	if err := window(&Alert{}).Where("acknowledged = 0").Count(&stats.Unacknowledged).Error; err != nil {
		return nil, err
	}
	for level, out := range map[string]*int64{
		string(alerts.LevelCritical): &stats.Critical,
		string(alerts.LevelWarning):  &stats.Warning,
		string(alerts.LevelInfo):     &stats.Info,
	} {
		if err := window(&Alert{}).Where("level = ?", level).Count(out).Error; err != nil {
			return nil, err
		}
	}
	if err := window(&Detection{}).Count(&stats.Detections).Error; err != nil {
		return nil, err
	}
	if err := window(&Screenshot{}).Count(&stats.Screenshots).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// PurgeOlderThan deletes alerts, detections and screenshots older than
// maxAge, including the screenshot files on disk. Returns the number of
// alert records removed.
func (a *AlertDB) PurgeOlderThan(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	old := []Screenshot{}
	if err := a.db.Where("time < ?", cutoff).Find(&old).Error; err != nil {
		return 0, err
	}
	for _, s := range old {
		if err := os.Remove(s.FullPath(a.ScreenshotDir())); err != nil && !os.IsNotExist(err) {
			a.log.Warnf("Failed to remove screenshot %v: %v", s.FileName, err)
		}
	}
	if err := a.db.Where("time < ?", cutoff).Delete(&Screenshot{}).Error; err != nil {
		return 0, err
	}
	if err := a.db.Where("time < ?", cutoff).Delete(&Detection{}).Error; err != nil {
		return 0, err
	}
	res := a.db.Where("time < ?", cutoff).Delete(&Alert{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Close closes the underlying database.
func (a *AlertDB) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
