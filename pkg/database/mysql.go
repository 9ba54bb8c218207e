package database

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vietparty/room-server/pkg/models"
)

type MySQLDB struct {
	*gorm.DB
}

func NewMySQLDB(host, port, user, password, dbname string) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SongHistory{},
		&models.RoomAudit{},
	)
}

// Song history operations
func (db *MySQLDB) SaveSongHistory(entry *models.SongHistory) error {
	return db.Create(entry).Error
}

func (db *MySQLDB) GetSongHistory(roomCode string, limit int) ([]*models.SongHistory, error) {
	var entries []*models.SongHistory
	if err := db.Where("room_code = ?", roomCode).
		Order("played_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Audit operations
func (db *MySQLDB) SaveRoomAudit(entry *models.RoomAudit) error {
	return db.Create(entry).Error
}

func (db *MySQLDB) GetRoomAudit(roomCode string, limit int) ([]*models.RoomAudit, error) {
	var entries []*models.RoomAudit
	if err := db.Where("room_code = ?", roomCode).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
