package models

import "time"

// Shop is the hot read-path entity served through the cache guard.
type Shop struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	TypeID    int64     `gorm:"column:type_id;index" json:"type_id"`
	Area      string    `gorm:"column:area" json:"area"`
	Address   string    `gorm:"column:address" json:"address"`
	AvgPrice  int64     `gorm:"column:avg_price" json:"avg_price"`
	Sold      int       `gorm:"column:sold;not null;default:0" json:"sold"`
	Comments  int       `gorm:"column:comments;not null;default:0" json:"comments"`
	Score     int       `gorm:"column:score;not null;default:0" json:"score"`
	OpenHours string    `gorm:"column:open_hours" json:"open_hours"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Shop) TableName() string {
	return "shops"
}
