package domain

import (
	"math"

	"github.com/shopspring/decimal"

	cartdomain "github.com/deshkart/storefront/internal/cart/domain"
	pricingdomain "github.com/deshkart/storefront/internal/pricing/domain"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "cod"
	PaymentMethodBKash PaymentMethod = "bkash"
	PaymentMethodNone  PaymentMethod = ""
)

// MetroCityKey 主城区的目的地键，城内运费按低档计
const MetroCityKey = "dhaka"

var (
	codRate   = decimal.NewFromFloat(0.01)
	bkashRate = decimal.NewFromFloat(0.0149)

	metroBaseCharge    = decimal.NewFromInt(60)
	metroPerKgCharge   = decimal.NewFromInt(20)
	outsideBaseCharge  = decimal.NewFromInt(100)
	outsidePerKgCharge = decimal.NewFromInt(30)
)

// PaymentBreakdown 结算金额拆分，在 PriceBreakdown 之上叠加运费与渠道附加费
type PaymentBreakdown struct {
	pricingdomain.PriceBreakdown

	TotalWeightGrams float64 `json:"total_weight_grams"`
	// 未知目的地时为 nil，运费无法定价
	ShippingCharge *decimal.Decimal `json:"shipping_charge,omitempty"`
	CODCharge      decimal.Decimal  `json:"cod_charge"`
	BKashCharge    decimal.Decimal  `json:"bkash_charge"`
}

// CalculatePayment 计算结算金额拆分
// 切换支付方式时无关的附加费必须清零，而不是保留旧值
// 附加费基数是未扣券、未含运费的 cartSubTotal（沿用既有业务口径）
func CalculatePayment(lines []cartdomain.CartLine, method PaymentMethod, cityKey string) PaymentBreakdown {
	pb := PaymentBreakdown{
		PriceBreakdown: pricingdomain.CalculateBreakdown(lines),
		CODCharge:      decimal.Zero,
		BKashCharge:    decimal.Zero,
	}

	for _, line := range lines {
		pb.TotalWeightGrams += line.WeightGrams * float64(line.Quantity)
	}

	if len(lines) > 0 && cityKey != "" {
		charge := shippingCharge(pb.TotalWeightGrams, cityKey == MetroCityKey)
		pb.ShippingCharge = &charge
	}

	switch method {
	case PaymentMethodCOD:
		pb.CODCharge = pricingdomain.RoundMoney(pb.CartSubTotal.Mul(codRate))
	case PaymentMethodBKash:
		pb.BKashCharge = pricingdomain.RoundMoney(pb.CartSubTotal.Mul(bkashRate))
	}

	return pb
}

// shippingCharge 按重量分档计运费，首公斤起价，每增加一公斤加价
func shippingCharge(weightGrams float64, inMetro bool) decimal.Decimal {
	kg := int64(math.Ceil(weightGrams / 1000.0))
	if kg < 1 {
		kg = 1
	}
	extra := decimal.NewFromInt(kg - 1)
	if inMetro {
		return metroBaseCharge.Add(metroPerKgCharge.Mul(extra))
	}
	return outsideBaseCharge.Add(outsidePerKgCharge.Mul(extra))
}
