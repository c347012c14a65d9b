package catalog

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
		CREATE TABLE video(
			id INTEGER PRIMARY KEY,
			code TEXT NOT NULL,
			original_name TEXT,
			video_path TEXT NOT NULL,
			keyframes_path TEXT NOT NULL,
			uploaded_at INT NOT NULL,
			last_job_id TEXT
		);
		CREATE UNIQUE INDEX idx_video_code ON video(code);
	`))

	return migs
}
