package alertdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE alert(
			id INTEGER PRIMARY KEY,
			public_id TEXT NOT NULL,
			time INT NOT NULL,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			zone TEXT,
			detection_count INT NOT NULL,
			acknowledged INT NOT NULL DEFAULT 0
		);

		CREATE INDEX idx_alert_public_id ON alert (public_id);
		CREATE INDEX idx_alert_time ON alert (time);

		CREATE TABLE detection(
			id INTEGER PRIMARY KEY,
			camera TEXT NOT NULL,
			time INT NOT NULL,
			count INT NOT NULL,
			objects TEXT
		);

		CREATE INDEX idx_detection_camera_time ON detection (camera, time);

		CREATE TABLE screenshot(
			id INTEGER PRIMARY KEY,
			alert_public_id TEXT NOT NULL,
			camera TEXT NOT NULL,
			time INT NOT NULL,
			file_name TEXT NOT NULL
		);

		CREATE INDEX idx_screenshot_time ON screenshot (time);
	`))

	return migs
}
