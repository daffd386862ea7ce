package models

import "time"

// VoucherOrder statuses.
const (
	OrderStatusUnpaid    int8 = 1
	OrderStatusPaid      int8 = 2
	OrderStatusRedeemed  int8 = 3
	OrderStatusExpired   int8 = 4
	OrderStatusCancelled int8 = 5
)

// VoucherOrder is the durable record of an admitted flash-sale purchase.
// The primary key is assigned by the id generator before persistence, never
// by the database.
type VoucherOrder struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	UserID    int64     `gorm:"column:user_id;index:idx_user_voucher;not null" json:"user_id"`
	VoucherID int64     `gorm:"column:voucher_id;index:idx_user_voucher;not null" json:"voucher_id"`
	PayType   int8      `gorm:"column:pay_type;not null;default:1" json:"pay_type"`
	Status    int8      `gorm:"column:status;not null;default:1" json:"status"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (VoucherOrder) TableName() string {
	return "voucher_orders"
}
