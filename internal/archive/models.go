// Package archive persists accepted readings to PostgreSQL. The engine's
// in-memory history stays the source of truth for queries; the archive is a
// write-behind copy for long-term retention.
package archive

import (
	"time"

	"gorm.io/gorm"
)

// ArchivedReading represents an accepted reading stored in the database.
type ArchivedReading struct {
	Timestamp  time.Time `gorm:"index:idx_sensor_timestamp;index:idx_timestamp;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	SensorID   string    `gorm:"index:idx_sensor_timestamp;not null"`
	SensorName string    `gorm:"not null"`
	DeviceID   string    `gorm:"index:idx_device;not null"`
	DeviceName string    `gorm:"not null"`
	Value      float64   `gorm:"not null"`
	Unit       string    `gorm:"not null"`
	Accuracy   float64   `gorm:"not null"`
	Confidence float64   `gorm:"not null"`
	Valid      bool      `gorm:"not null"`
	ID         uint      `gorm:"primaryKey"`
}

// TableName specifies the table name for ArchivedReading model.
func (ArchivedReading) TableName() string {
	return "archived_readings"
}

// ArchivedDevice represents a device that has produced at least one
// archived reading.
type ArchivedDevice struct {
	DeviceID  string         `gorm:"uniqueIndex;not null"`
	Name      string         `gorm:"not null"`
	LastSeen  time.Time      `gorm:"index:idx_last_seen"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
	ID        uint           `gorm:"primaryKey"`
}

// TableName specifies the table name for ArchivedDevice model.
func (ArchivedDevice) TableName() string {
	return "archived_devices"
}
