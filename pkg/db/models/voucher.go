package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherType distinguishes ordinary vouchers from flash-sale ones.
type VoucherType int

const (
	VoucherTypeRegular VoucherType = 0
	VoucherTypeSeckill VoucherType = 1
)

// Voucher is the catalog entry a shop sells.
type Voucher struct {
	ID          int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ShopID      int64           `gorm:"column:shop_id;index;not null" json:"shop_id"`
	Title       string          `gorm:"column:title;not null" json:"title"`
	SubTitle    string          `gorm:"column:sub_title" json:"sub_title"`
	Rules       string          `gorm:"column:rules" json:"rules"`
	PayValue    decimal.Decimal `gorm:"column:pay_value;type:decimal(10,2);not null" json:"pay_value"`
	ActualValue decimal.Decimal `gorm:"column:actual_value;type:decimal(10,2);not null" json:"actual_value"`
	Type        VoucherType     `gorm:"column:type;not null;default:0" json:"type"`
	Status      int8            `gorm:"column:status;not null;default:1" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Voucher) TableName() string {
	return "vouchers"
}
