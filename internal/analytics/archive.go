package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SnapshotEntity is one archived report. The full report is kept as a
// JSON blob; the headline numbers are denormalized into columns so the
// history can be queried without decoding every row.
type SnapshotEntity struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	GeneratedAt    time.Time `gorm:"column:generated_at;not null;index"`
	TotalLeads     int       `gorm:"column:total_leads;not null"`
	HotLeads       int       `gorm:"column:hot_leads;not null"`
	ConversionRate float64   `gorm:"column:conversion_rate;not null"`
	AvgScore       float64   `gorm:"column:avg_score;not null"`
	Report         []byte    `gorm:"column:report;not null"`
}

func (SnapshotEntity) TableName() string {
	return "report_snapshots"
}

// Archive persists report snapshots to a local sqlite file so trend data
// survives even though the reports themselves are computed on demand.
type Archive struct {
	db *gorm.DB
}

// OpenArchive opens (creating if needed) the snapshot database at path.
// Use ":memory:" for an ephemeral archive.
func OpenArchive(path string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open report archive")
	}
	if err := db.AutoMigrate(&SnapshotEntity{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate report archive")
	}
	return &Archive{db: db}, nil
}

// Save archives a report and returns the snapshot id.
func (a *Archive) Save(ctx context.Context, report *Report) (int64, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return 0, errors.Wrap(err, "failed to encode report")
	}
	entity := SnapshotEntity{
		GeneratedAt:    report.GeneratedAt,
		TotalLeads:     report.Overview.TotalLeads,
		HotLeads:       report.Overview.HotLeads,
		ConversionRate: report.Overview.ConversionRate,
		AvgScore:       report.Overview.AvgScore,
		Report:         raw,
	}
	if err := a.db.WithContext(ctx).Create(&entity).Error; err != nil {
		return 0, errors.Wrap(err, "failed to save report snapshot")
	}
	return entity.ID, nil
}

// List returns the most recent snapshots, newest first.
func (a *Archive) List(ctx context.Context, limit int) ([]SnapshotEntity, error) {
	if limit <= 0 {
		limit = 30
	}
	var entities []SnapshotEntity
	err := a.db.WithContext(ctx).
		Order("generated_at DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list report snapshots")
	}
	return entities, nil
}

// Decode unpacks the archived report blob.
func (e SnapshotEntity) Decode() (*Report, error) {
	var r Report
	if err := json.Unmarshal(e.Report, &r); err != nil {
		return nil, errors.Wrap(err, "corrupted report snapshot")
	}
	return &r, nil
}
