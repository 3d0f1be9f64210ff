package server

import (
	"context"

	"github.com/go-co-op/gocron"
	"github.com/wkbook/phonebook/server/gstorage"
	"github.com/wkbook/phonebook/server/models"
	"github.com/wkbook/phonebook/shared"
	"github.com/wkbook/phonebook/utils"
)

// restoreSqliteBackup pulls the last uploaded db file from cloud storage on
// a fresh start, before migration opens the local file. A no-op when the
// backup sync is disabled, a local db already exists, or no backup object
// has been uploaded yet.
func restoreSqliteBackup(config shared.GoogleConfig, dbRootDir string) error {
	enabled, _ := config.Storage.EnableSqliteBackupAndSync.(bool)
	if !enabled {
		return nil
	}

	dbFilePath, err := models.DbFilePath(dbRootDir)
	if err != nil {
		return err
	}

	// never clobber a local db with a stale backup
	if utils.FileExist(dbFilePath) {
		return nil
	}

	gs, err := gstorage.NewGStorage(config.ApplicationCredentials)
	if err != nil {
		return err
	}

	err = gs.DownloadFile(context.Background(), config.Storage.Bucket, config.Storage.Prefix, dbFilePath)
	if err == gstorage.ErrObjectNotExist {
		logg.Info("no sqlite backup to restore, starting with a fresh db")
		return nil
	}

	if err == nil {
		logg.Infof("restored sqlite db from gs://%v/%v", config.Storage.Bucket, config.Storage.Prefix)
	}

	return err
}

// scheduleSqliteBackup registers the periodic encrypted-db upload to cloud
// storage. A no-op unless enabled in the google.storage config section.
func scheduleSqliteBackup(scheduler *gocron.Scheduler, config shared.GoogleConfig, dbRootDir string) error {
	enabled, _ := config.Storage.EnableSqliteBackupAndSync.(bool)
	if !enabled {
		return nil
	}

	gs, err := gstorage.NewGStorage(config.ApplicationCredentials)
	if err != nil {
		return err
	}

	dbFilePath, err := models.DbFilePath(dbRootDir)
	if err != nil {
		return err
	}

	_, err = scheduler.Cron(config.Storage.SqliteBackupSchedule).Tag("sqlite-backup").Do(func() {
		if err := gs.UploadFile(context.Background(), config.Storage.Bucket, config.Storage.Prefix, dbFilePath); err != nil {
			logg.Errorf("sqlite backup failed: %v", err)
			return
		}

		logg.Infof("sqlite backup uploaded to gs://%v/%v", config.Storage.Bucket, config.Storage.Prefix)
	})

	return err
}
