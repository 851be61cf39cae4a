package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyItemID        = errors.New("item id must not be empty")
	ErrQuantityOutOfRange = errors.New("quantity must be between 1 and 9999")
	ErrNegativePrice      = errors.New("unit price must not be negative")
	ErrNegativeWeight     = errors.New("weight must not be negative")
	ErrLineNotFound       = errors.New("cart line not found")
	ErrUnauthorized       = errors.New("cart write rejected for auth reasons")
)

// 数量取值范围
const (
	MinQuantity = 1
	MaxQuantity = 9999
)

// LineKey 购物车行的标识键，相同键的行必须合并
type LineKey struct {
	ItemID     string
	Color      string
	IsPreOrder bool
}

// CartLine 购物车中的一个可购买行
type CartLine struct {
	ItemID            string           `json:"item_id"`
	Color             string           `json:"color"`
	Quantity          int              `json:"quantity"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	PreorderUnitPrice *decimal.Decimal `json:"preorder_unit_price,omitempty"`
	IsPreOrder        bool             `json:"is_pre_order"`
	WeightGrams       float64          `json:"weight_grams"`
	// 低库存阈值，0 表示使用默认值
	LowStockThreshold int `json:"low_stock_threshold,omitempty"`

	// 展示元数据，核心逻辑不感知
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ImageURL string `json:"image_url"`
	Category string `json:"category"`
}

// Key 返回行的标识键
func (l CartLine) Key() LineKey {
	return LineKey{ItemID: l.ItemID, Color: l.Color, IsPreOrder: l.IsPreOrder}
}

// EffectiveUnitPrice 预售行取预售价，无预售价时回退到原价
func (l CartLine) EffectiveUnitPrice() decimal.Decimal {
	if l.IsPreOrder && l.PreorderUnitPrice != nil {
		return *l.PreorderUnitPrice
	}
	return l.UnitPrice
}

// Validate 在进入 Store 之前校验行数据
func (l CartLine) Validate() error {
	if l.ItemID == "" {
		return ErrEmptyItemID
	}
	if l.Quantity < MinQuantity || l.Quantity > MaxQuantity {
		return ErrQuantityOutOfRange
	}
	if l.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if l.PreorderUnitPrice != nil && l.PreorderUnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	if l.WeightGrams < 0 {
		return ErrNegativeWeight
	}
	return nil
}

// Cart 权威购物车，行集合加上服务端会话令牌
type Cart struct {
	Lines  []CartLine `json:"lines"`
	CToken string     `json:"ctoken"`
}

// Find 按标识键查找行
func (c *Cart) Find(key LineKey) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// AddOrIncrement 合并新增：相同标识键的行累加数量（上限 9999），否则追加新行
func (c *Cart) AddOrIncrement(line CartLine) error {
	if err := line.Validate(); err != nil {
		return err
	}
	if existing, ok := c.Find(line.Key()); ok {
		qty := existing.Quantity + line.Quantity
		if qty > MaxQuantity {
			qty = MaxQuantity
		}
		existing.Quantity = qty
		return nil
	}
	c.Lines = append(c.Lines, line)
	return nil
}

// SetQuantity 设置行数量
func (c *Cart) SetQuantity(key LineKey, quantity int) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return ErrQuantityOutOfRange
	}
	line, ok := c.Find(key)
	if !ok {
		return ErrLineNotFound
	}
	line.Quantity = quantity
	return nil
}

// Remove 移除行
func (c *Cart) Remove(key LineKey) error {
	for i := range c.Lines {
		if c.Lines[i].Key() == key {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

// Clone 返回购物车的深拷贝
func (c *Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines, CToken: c.CToken}
}
