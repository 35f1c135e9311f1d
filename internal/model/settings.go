package model

// DefaultFeedAngle is the motor angle used until the operator changes it.
const DefaultFeedAngle = 10.0

// DeviceSettings holds the mutable per-device configuration. The table is
// a singleton: readers get-or-create the one row instead of failing on an
// empty table.
type DeviceSettings struct {
	ID        int64   `gorm:"primaryKey" json:"-"`
	FeedAngle float64 `gorm:"not null" json:"feed_angle"`
}
