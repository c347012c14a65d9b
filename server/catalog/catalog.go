package catalog

// Package catalog is the registry of videos known to the server: uploads and
// library videos alike. It replaces any in-process map of code -> file paths
// with a sqlite-backed repository, so the mapping survives restarts and every
// mutation is persisted immediately.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

type Catalog struct {
	Log logs.Log
	DB  *gorm.DB
}

var ErrNotRegistered = errors.New("video not registered")

func Open(log logs.Log, dbFilename string) (*Catalog, error) {
	os.MkdirAll(filepath.Dir(dbFilename), 0777)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open catalog database %v: %w", dbFilename, err)
	}
	return &Catalog{
		Log: log,
		DB:  db,
	}, nil
}

// Register inserts or replaces the record for video.Code.
func (c *Catalog) Register(video *Video) error {
	existing := Video{}
	err := c.DB.First(&existing, "code = ?", video.Code).Error
	if err == nil {
		video.ID = existing.ID
		return c.DB.Save(video).Error
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.DB.Create(video).Error
	}
	return err
}

func (c *Catalog) ByCode(code string) (*Video, error) {
	video := Video{}
	err := c.DB.First(&video, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotRegistered, code)
	} else if err != nil {
		return nil, err
	}
	return &video, nil
}

func (c *Catalog) List() ([]Video, error) {
	videos := []Video{}
	if err := c.DB.Order("code").Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// SetLastJob records the most recent detection job launched for a code.
func (c *Catalog) SetLastJob(code, jobID string) error {
	res := c.DB.Model(&Video{}).Where("code = ?", code).Update("last_job_id", jobID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %v", ErrNotRegistered, code)
	}
	return nil
}
