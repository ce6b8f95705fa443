package purchase

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-apotek/internal/db"
	"github.com/noah-isme/backend-apotek/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPriceLineDiscounted(t *testing.T) {
	calc := pricing.NewCalculator(decimal.Decimal{})
	product := db.Product{ID: uuid.New(), HasVAT: true}
	supplierID := uuid.New()
	invoiceID := uuid.New()
	discount := dec("10")
	expiry := "2027-06-30"

	params, err := PriceLine(calc, product, LineInput{
		ProductID:        product.ID.String(),
		BatchNumber:      "PCM-2026-014",
		ExpiryDate:       &expiry,
		QuantityReceived: 50,
		OriginalCost:     dec("100"),
		DiscountPercent:  &discount,
		VATRate:          dec("16"),
	}, supplierID, invoiceID)
	require.NoError(t, err)

	assert.Equal(t, product.ID, params.ProductID)
	assert.Equal(t, invoiceID, params.PurchaseInvoiceID)
	assert.Equal(t, "PCM-2026-014", params.BatchNumber)
	require.NotNil(t, params.ExpiryDate)
	assert.Equal(t, "2027-06-30", params.ExpiryDate.Format("2006-01-02"))
	assert.True(t, params.HasVAT)

	require.NotNil(t, params.DiscountedCost)
	assert.True(t, params.DiscountedCost.Equal(dec("90")))
	require.NotNil(t, params.MinimumPriceExVAT)
	assert.True(t, params.MinimumPriceExVAT.Equal(dec("119.70")))
	require.NotNil(t, params.MinimumPriceFinal)
	assert.True(t, params.MinimumPriceFinal.Equal(dec("140")))
	assert.True(t, params.TargetPriceExVAT.Equal(dec("133.00")))
	assert.True(t, params.TargetPriceFinal.Equal(dec("155")))
}

func TestPriceLineWithoutDiscount(t *testing.T) {
	calc := pricing.NewCalculator(decimal.Decimal{})
	product := db.Product{ID: uuid.New(), HasVAT: true}

	params, err := PriceLine(calc, product, LineInput{
		ProductID:        product.ID.String(),
		BatchNumber:      "IBU-2026-002",
		QuantityReceived: 30,
		OriginalCost:     dec("50"),
		VATRate:          dec("16"),
	}, uuid.New(), uuid.New())
	require.NoError(t, err)

	assert.Nil(t, params.DiscountPercent)
	assert.Nil(t, params.DiscountedCost)
	assert.Nil(t, params.MinimumPriceExVAT)
	assert.Nil(t, params.MinimumPriceFinal)
	assert.Nil(t, params.ExpiryDate)
	assert.True(t, params.TargetPriceExVAT.Equal(dec("66.50")))
	assert.True(t, params.TargetPriceFinal.Equal(dec("80")))
}

func TestPriceLineVATExempt(t *testing.T) {
	calc := pricing.NewCalculator(decimal.Decimal{})
	product := db.Product{ID: uuid.New(), HasVAT: false}

	params, err := PriceLine(calc, product, LineInput{
		ProductID:        product.ID.String(),
		BatchNumber:      "ORS-2026-001",
		QuantityReceived: 100,
		OriginalCost:     dec("20"),
		VATRate:          dec("16"),
	}, uuid.New(), uuid.New())
	require.NoError(t, err)

	assert.False(t, params.HasVAT)
	// 20 * 1.33 = 26.60, no VAT, rounded up to 30.
	assert.True(t, params.TargetPriceExVAT.Equal(dec("26.60")))
	assert.True(t, params.TargetPriceFinal.Equal(dec("30")))
}

func TestPriceLineRejectsBadCost(t *testing.T) {
	calc := pricing.NewCalculator(decimal.Decimal{})
	product := db.Product{ID: uuid.New(), HasVAT: true}

	_, err := PriceLine(calc, product, LineInput{
		ProductID:        product.ID.String(),
		BatchNumber:      "X",
		QuantityReceived: 1,
		OriginalCost:     dec("0"),
		VATRate:          dec("16"),
	}, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, pricing.ErrNonPositiveCost)
}
