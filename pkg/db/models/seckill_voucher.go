package models

import "time"

// SeckillVoucher extends a voucher with the flash-sale window and stock.
// Stock is mutated only via the admission script (Redis) and the persister's
// conditional decrement (DB safety net).
type SeckillVoucher struct {
	VoucherID int64     `gorm:"column:voucher_id;primaryKey;autoIncrement:false" json:"voucher_id"`
	Stock     int       `gorm:"column:stock;not null" json:"stock"`
	BeginTime time.Time `gorm:"column:begin_time;not null" json:"begin_time"`
	EndTime   time.Time `gorm:"column:end_time;not null" json:"end_time"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SeckillVoucher) TableName() string {
	return "seckill_vouchers"
}
