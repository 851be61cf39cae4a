package mysql

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/deshkart/storefront/internal/cart/domain"
	pkgdb "github.com/deshkart/storefront/pkg/db"
)

// CartMirror 持久化镜像主表，一个会话一行
type CartMirror struct {
	gorm.Model
	SessionID string           `gorm:"column:session_id;type:varchar(64);uniqueIndex;not null"`
	CToken    string           `gorm:"column:ctoken;type:varchar(255)"`
	Lines     []CartMirrorLine `gorm:"foreignKey:MirrorID"`
}

func (CartMirror) TableName() string { return "cart_mirrors" }

// CartMirrorLine 镜像行
type CartMirrorLine struct {
	gorm.Model
	MirrorID          uint             `gorm:"column:mirror_id;index;not null"`
	ItemID            string           `gorm:"column:item_id;type:varchar(64);not null"`
	Color             string           `gorm:"column:color;type:varchar(64)"`
	Quantity          int              `gorm:"column:quantity;not null"`
	UnitPrice         decimal.Decimal  `gorm:"column:unit_price;type:decimal(20,2)"`
	PreorderUnitPrice *decimal.Decimal `gorm:"column:preorder_unit_price;type:decimal(20,2)"`
	IsPreOrder        bool             `gorm:"column:is_pre_order;not null"`
	WeightGrams       float64          `gorm:"column:weight_grams"`
	LowStockThreshold int              `gorm:"column:low_stock_threshold"`
	Name              string           `gorm:"column:name;type:varchar(255)"`
	Slug              string           `gorm:"column:slug;type:varchar(255)"`
	ImageURL          string           `gorm:"column:image_url;type:varchar(512)"`
	Category          string           `gorm:"column:category;type:varchar(128)"`
}

func (CartMirrorLine) TableName() string { return "cart_mirror_lines" }

type cartMirrorRepository struct{ db *pkgdb.DB }

// NewCartMirrorRepository 创建镜像仓储
func NewCartMirrorRepository(db *pkgdb.DB) domain.CartMirrorRepository {
	return &cartMirrorRepository{db: db}
}

func (r *cartMirrorRepository) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var mirror CartMirror
	err := r.db.WithContext(ctx).Preload("Lines").Where("session_id = ?", sessionID).First(&mirror).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.Cart{}, nil
	}
	if err != nil {
		return nil, err
	}

	cart := &domain.Cart{CToken: mirror.CToken}
	for _, row := range mirror.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ItemID:            row.ItemID,
			Color:             row.Color,
			Quantity:          row.Quantity,
			UnitPrice:         row.UnitPrice,
			PreorderUnitPrice: row.PreorderUnitPrice,
			IsPreOrder:        row.IsPreOrder,
			WeightGrams:       row.WeightGrams,
			LowStockThreshold: row.LowStockThreshold,
			Name:              row.Name,
			Slug:              row.Slug,
			ImageURL:          row.ImageURL,
			Category:          row.Category,
		})
	}
	return cart, nil
}

func (r *cartMirrorRepository) Save(ctx context.Context, sessionID string, cart *domain.Cart) error {
	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var mirror CartMirror
		err := tx.Where("session_id = ?", sessionID).First(&mirror).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			mirror = CartMirror{SessionID: sessionID}
			if err := tx.Create(&mirror).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Model(&mirror).Update("ctoken", cart.CToken).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("mirror_id = ?", mirror.ID).Delete(&CartMirrorLine{}).Error; err != nil {
			return err
		}

		if len(cart.Lines) == 0 {
			return nil
		}
		rows := make([]CartMirrorLine, 0, len(cart.Lines))
		for _, line := range cart.Lines {
			rows = append(rows, CartMirrorLine{
				MirrorID:          mirror.ID,
				ItemID:            line.ItemID,
				Color:             line.Color,
				Quantity:          line.Quantity,
				UnitPrice:         line.UnitPrice,
				PreorderUnitPrice: line.PreorderUnitPrice,
				IsPreOrder:        line.IsPreOrder,
				WeightGrams:       line.WeightGrams,
				LowStockThreshold: line.LowStockThreshold,
				Name:              line.Name,
				Slug:              line.Slug,
				ImageURL:          line.ImageURL,
				Category:          line.Category,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (r *cartMirrorRepository) Clear(ctx context.Context, sessionID string) error {
	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var mirror CartMirror
		err := tx.Where("session_id = ?", sessionID).First(&mirror).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Unscoped().Where("mirror_id = ?", mirror.ID).Delete(&CartMirrorLine{}).Error
	})
}
