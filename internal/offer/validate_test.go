package offer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidateOffer(t *testing.T) {
	valid := Offer{Name: "Weekend 10%", Kind: KindPercentage, Value: dec("10"), Active: true}
	require.NoError(t, valid.Validate())

	later := noon.Add(time.Hour)
	zero := int32(0)
	cases := map[string]func(*Offer){
		"name":         func(o *Offer) { o.Name = " " },
		"kind":         func(o *Offer) { o.Kind = "bogo" },
		"negative":     func(o *Offer) { o.Value = dec("-1") },
		"percent":      func(o *Offer) { o.Value = dec("100.01") },
		"bxgy":         func(o *Offer) { o.Kind = KindBuyXGetY; o.BuyQuantity = 2 },
		"categories":   func(o *Offer) { o.Kind = KindCategoryBased },
		"window":       func(o *Offer) { o.ValidFrom = &later; o.ValidTo = &noon },
		"overnight":    func(o *Offer) { o.TimeStart = clockPtr(22, 0); o.TimeEnd = clockPtr(1, 0) },
		"usage":        func(o *Offer) { o.UsageLimit = &zero },
		"discountType": func(o *Offer) { o.Kind = KindTimeBased; o.DiscountType = KindBuyXGetY },
	}
	for name, alter := range cases {
		o := valid
		alter(&o)
		require.ErrorIs(t, o.Validate(), ErrInvalidOffer, name)
	}

	flat := Offer{Name: "Rs 500 off", Kind: KindFlatAmount, Value: dec("500")}
	require.NoError(t, flat.Validate(), "flat amounts are not limited to 100")

	categories := Offer{Name: "Grocery", Kind: KindCategoryBased, Value: dec("5"), ApplicableCategories: []uuid.UUID{uuid.New()}}
	require.NoError(t, categories.Validate())
}

func TestUsageAllows(t *testing.T) {
	limit := int32(3)
	perCustomer := int32(1)
	unlimited := int32(-1)

	o := Offer{ID: uuid.New(), UsageLimit: &limit, UsedCount: 2, PerCustomerLimit: &perCustomer}
	require.NoError(t, UsageAllows(o, 0))
	require.ErrorIs(t, UsageAllows(o, 1), ErrPerCustomerLimitReached)

	o.UsedCount = 3
	require.ErrorIs(t, UsageAllows(o, 0), ErrUsageLimitReached)

	o.UsageLimit = &unlimited
	o.PerCustomerLimit = nil
	require.NoError(t, UsageAllows(o, 99))
}

func TestFilterUsable(t *testing.T) {
	limit := int32(1)
	used := Offer{ID: uuid.New(), Name: "once", PerCustomerLimit: &limit}
	free := Offer{ID: uuid.New(), Name: "always"}

	kept, rejected := FilterUsable([]Offer{used, free}, map[uuid.UUID]int{used.ID: 1})
	require.Len(t, kept, 1)
	require.Equal(t, "always", kept[0].Name)
	require.Len(t, rejected, 1)
	require.Equal(t, ErrPerCustomerLimitReached.Error(), rejected[0].Reason)

	kept, _ = FilterUsable([]Offer{used, free}, nil)
	require.Len(t, kept, 2)
}
