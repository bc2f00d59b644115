// Package sqlstore implements the storage gateway on a relational database
// (SQLite or PostgreSQL) with images kept in a local directory.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dpup/prefab/logging"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/dpup/wolfcreekpass/server/internal/model"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
)

// Supported dialects
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options configures a relational store
type Options struct {
	Dialect string
	// DSN is a file path for SQLite or a connection string for PostgreSQL
	DSN    string
	Images storage.ObjectStore
}

// Store implements storage.Gateway using gorm
type Store struct {
	db      *gorm.DB
	dialect string
	dsn     string
	images  storage.ObjectStore
}

var _ storage.Gateway = (*Store)(nil)

// Open connects to the database. Call Init to apply the schema.
func Open(opts Options) (*Store, error) {
	var dialector gorm.Dialector
	dsn := opts.DSN
	switch opts.Dialect {
	case DialectSQLite:
		dsn = sqliteDSN(opts.DSN)
		dialector = sqlite.Open(dsn)
	case DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", opts.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", opts.Dialect, err)
	}

	if opts.Dialect == DialectSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		// SQLite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	return New(db, opts.Dialect, dsn, opts.Images), nil
}

// New wraps an existing gorm connection
func New(db *gorm.DB, dialect, dsn string, images storage.ObjectStore) *Store {
	return &Store{db: db, dialect: dialect, dsn: dsn, images: images}
}

func sqliteDSN(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

func newGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// Init applies pending schema migrations
func (s *Store) Init(ctx context.Context) error {
	if err := Migrate(ctx, s.dialect, s.dsn); err != nil {
		return err
	}
	logging.Infow(ctx, "Relational storage ready", "dialect", s.dialect)
	return nil
}

// Close releases the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Objects returns the image and export store
func (s *Store) Objects() storage.ObjectStore {
	return s.images
}

// SaveCamera upserts a camera by id
func (s *Store) SaveCamera(ctx context.Context, camera model.Camera) error {
	row := toCameraRow(camera)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save camera %d: %w", camera.ID, err)
	}
	return nil
}

// GetCameras returns all cameras ordered by id
func (s *Store) GetCameras(ctx context.Context) ([]model.Camera, error) {
	var rows []cameraRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cameras: %w", err)
	}
	out := make([]model.Camera, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveCapture inserts a capture record
func (s *Store) SaveCapture(ctx context.Context, capture model.CaptureRecord) error {
	row := toCaptureRow(capture)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCycle(tx, capture.CycleID); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("camera %d cycle %s: %w", capture.CameraID, capture.CycleID, storage.ErrDuplicateCapture)
	case err != nil:
		return fmt.Errorf("failed to save capture for camera %d: %w", capture.CameraID, err)
	}
	return nil
}

// GetRecentCaptures returns the newest captures across all cycles
func (s *Store) GetRecentCaptures(ctx context.Context, limit int) ([]model.CaptureRecord, error) {
	if limit <= 0 {
		return []model.CaptureRecord{}, nil
	}
	var rows []captureRow
	err := s.db.WithContext(ctx).Order("captured_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent captures: %w", err)
	}
	return captureModels(rows), nil
}

// GetCapturesByCycle returns the cycle's captures ordered by camera id
func (s *Store) GetCapturesByCycle(ctx context.Context, cycleID string) ([]model.CaptureRecord, error) {
	var rows []captureRow
	err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("camera_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load captures for cycle %s: %w", cycleID, err)
	}
	return captureModels(rows), nil
}

// GetLatestCapture returns the camera's newest capture or nil
func (s *Store) GetLatestCapture(ctx context.Context, cameraID int) (*model.CaptureRecord, error) {
	var row captureRow
	err := s.db.WithContext(ctx).Where("camera_id = ?", cameraID).
		Order("captured_at DESC").Order("id DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest capture for camera %d: %w", cameraID, err)
	}
	c := row.model()
	return &c, nil
}

func captureModels(rows []captureRow) []model.CaptureRecord {
	out := make([]model.CaptureRecord, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out
}

// SaveRoutes replaces the stored route set
func (s *Store) SaveRoutes(ctx context.Context, routes []model.Route) error {
	rows := make([]routeRow, len(routes))
	for i, r := range routes {
		rows[i] = routeRow(r)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&routeRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save routes: %w", err)
	}
	return nil
}

// GetRoutes returns the stored routes ordered by id
func (s *Store) GetRoutes(ctx context.Context) ([]model.Route, error) {
	var rows []routeRow
	if err := s.db.WithContext(ctx).Order("route_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	out := make([]model.Route, len(rows))
	for i, r := range rows {
		out[i] = model.Route(r)
	}
	return out, nil
}

// SaveCycle upserts a cycle summary
func (s *Store) SaveCycle(ctx context.Context, cycle model.CycleSummary) error {
	row := toCycleRow(cycle)
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save cycle %s: %w", cycle.CycleID, err)
	}
	return nil
}

// GetCycle returns one cycle summary
func (s *Store) GetCycle(ctx context.Context, cycleID string) (*model.CycleSummary, error) {
	var row cycleRow
	err := s.db.WithContext(ctx).Where("cycle_id = ?", cycleID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cycle %s: %w", cycleID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", cycleID, err)
	}
	c := row.model()
	return &c, nil
}

// GetCycles returns the most recently started cycles
func (s *Store) GetCycles(ctx context.Context, limit int) ([]model.CycleSummary, error) {
	if limit <= 0 {
		return []model.CycleSummary{}, nil
	}
	var rows []cycleRow
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load cycles: %w", err)
	}
	out := make([]model.CycleSummary, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// requireCycle fails with storage.ErrUnknownCycle unless the cycle exists
func requireCycle(tx *gorm.DB, cycleID string) error {
	var count int64
	if err := tx.Model(&cycleRow{}).Where("cycle_id = ?", cycleID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("cycle %s: %w", cycleID, storage.ErrUnknownCycle)
	}
	return nil
}

// saveBatch inserts a cycle-scoped batch after checking the cycle exists
func saveBatch[R any](ctx context.Context, db *gorm.DB, cycleID, kind string, rows []R) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCycle(tx, cycleID); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save %s for cycle %s: %w", kind, cycleID, err)
	}
	return nil
}

// loadBatch reads a cycle-scoped batch in insertion order
func loadBatch[R any](ctx context.Context, db *gorm.DB, cycleID, kind string) ([]R, error) {
	var rows []R
	if err := db.WithContext(ctx).Where("cycle_id = ?", cycleID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load %s for cycle %s: %w", kind, cycleID, err)
	}
	return rows, nil
}

// SaveRoadConditions stores the cycle's road conditions
func (s *Store) SaveRoadConditions(ctx context.Context, cycleID string, conditions []model.RoadCondition) error {
	rows := make([]roadConditionRow, len(conditions))
	for i, c := range conditions {
		rows[i] = toRoadConditionRow(cycleID, c)
	}
	return saveBatch(ctx, s.db, cycleID, "road conditions", rows)
}

// GetRoadConditions returns the cycle's road conditions
func (s *Store) GetRoadConditions(ctx context.Context, cycleID string) ([]model.RoadCondition, error) {
	rows, err := loadBatch[roadConditionRow](ctx, s.db, cycleID, "road conditions")
	if err != nil {
		return nil, err
	}
	out := make([]model.RoadCondition, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveEvents stores the cycle's events
func (s *Store) SaveEvents(ctx context.Context, cycleID string, events []model.Event) error {
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = toEventRow(cycleID, e)
	}
	return saveBatch(ctx, s.db, cycleID, "events", rows)
}

// GetEvents returns the cycle's events
func (s *Store) GetEvents(ctx context.Context, cycleID string) ([]model.Event, error) {
	rows, err := loadBatch[eventRow](ctx, s.db, cycleID, "events")
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveWeather stores the cycle's weather station readings
func (s *Store) SaveWeather(ctx context.Context, cycleID string, stations []model.WeatherStation) error {
	rows := make([]weatherRow, len(stations))
	for i, w := range stations {
		rows[i] = toWeatherRow(cycleID, w)
	}
	return saveBatch(ctx, s.db, cycleID, "weather", rows)
}

// GetWeather returns the cycle's weather station readings
func (s *Store) GetWeather(ctx context.Context, cycleID string) ([]model.WeatherStation, error) {
	rows, err := loadBatch[weatherRow](ctx, s.db, cycleID, "weather")
	if err != nil {
		return nil, err
	}
	out := make([]model.WeatherStation, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveMountainPasses stores the cycle's pass reports
func (s *Store) SaveMountainPasses(ctx context.Context, cycleID string, passes []model.MountainPass) error {
	rows := make([]mountainPassRow, len(passes))
	for i, p := range passes {
		rows[i] = toMountainPassRow(cycleID, p)
	}
	return saveBatch(ctx, s.db, cycleID, "mountain passes", rows)
}

// GetMountainPasses returns the cycle's pass reports
func (s *Store) GetMountainPasses(ctx context.Context, cycleID string) ([]model.MountainPass, error) {
	rows, err := loadBatch[mountainPassRow](ctx, s.db, cycleID, "mountain passes")
	if err != nil {
		return nil, err
	}
	out := make([]model.MountainPass, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveSnowPlows stores the cycle's plow positions
func (s *Store) SaveSnowPlows(ctx context.Context, cycleID string, plows []model.SnowPlow) error {
	rows := make([]snowPlowRow, len(plows))
	for i, p := range plows {
		rows[i] = toSnowPlowRow(cycleID, p)
	}
	return saveBatch(ctx, s.db, cycleID, "snow plows", rows)
}

// GetSnowPlows returns the cycle's plow positions
func (s *Store) GetSnowPlows(ctx context.Context, cycleID string) ([]model.SnowPlow, error) {
	rows, err := loadBatch[snowPlowRow](ctx, s.db, cycleID, "snow plows")
	if err != nil {
		return nil, err
	}
	out := make([]model.SnowPlow, len(rows))
	for i, r := range rows {
		out[i] = r.model()
	}
	return out, nil
}

// SaveImage writes image bytes to the local image directory
func (s *Store) SaveImage(ctx context.Context, key string, data []byte) (string, error) {
	if err := s.images.Put(ctx, storage.ImagePrefix+key, data, "image/jpeg"); err != nil {
		return "", err
	}
	return s.GetImageURL(key), nil
}

// GetImageURL returns the local path of an image
func (s *Store) GetImageURL(key string) string {
	return s.images.URL(storage.ImagePrefix + key)
}

// GetImageHash returns the camera's stored content hash
func (s *Store) GetImageHash(ctx context.Context, cameraID int) (string, bool, error) {
	var row imageHashRow
	err := s.db.WithContext(ctx).Where("camera_id = ?", cameraID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load image hash for camera %d: %w", cameraID, err)
	}
	return row.HashHex, true, nil
}

// SaveImageHash records the camera's latest content hash
func (s *Store) SaveImageHash(ctx context.Context, cameraID int, hashHex string) error {
	row := imageHashRow{CameraID: cameraID, HashHex: hashHex, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "camera_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"hash_hex", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save image hash for camera %d: %w", cameraID, err)
	}
	return nil
}
