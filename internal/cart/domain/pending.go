package domain

// PendingUpdate 尚未确认的数量变更，同一标识键后写覆盖先写
type PendingUpdate struct {
	ItemID      string
	Color       string
	IsPreOrder  bool
	NewQuantity int
}

// Key 返回更新对应的行标识键
func (u PendingUpdate) Key() LineKey {
	return LineKey{ItemID: u.ItemID, Color: u.Color, IsPreOrder: u.IsPreOrder}
}
