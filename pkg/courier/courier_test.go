package courier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/threadline/courier-bridge/pkg/courier"
)

func TestTokenState_Usable(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		state courier.TokenState
		want  bool
	}{
		{
			name:  "fresh token well past the margin",
			state: courier.TokenState{AccessToken: "tok", ExpiresAt: now.Add(5 * time.Hour)},
			want:  true,
		},
		{
			name:  "token inside the safety margin",
			state: courier.TokenState{AccessToken: "tok", ExpiresAt: now.Add(30 * time.Minute)},
			want:  false,
		},
		{
			name:  "expired token",
			state: courier.TokenState{AccessToken: "tok", ExpiresAt: now.Add(-time.Hour)},
			want:  false,
		},
		{
			name:  "no token at all",
			state: courier.TokenState{ExpiresAt: now.Add(5 * time.Hour)},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Usable(now))
		})
	}
}

func TestLocationSelection_Complete(t *testing.T) {
	assert.True(t, courier.LocationSelection{CityID: 1, ZoneID: 5}.Complete())
	assert.True(t, courier.LocationSelection{CityID: 1, ZoneID: 5, AreaID: 12}.Complete())
	assert.False(t, courier.LocationSelection{CityID: 1}.Complete())
	assert.False(t, courier.LocationSelection{ZoneID: 5}.Complete())
	assert.False(t, courier.LocationSelection{}.Complete())
}

func TestOrder_ItemQuantity(t *testing.T) {
	order := &courier.Order{Items: []courier.LineItem{
		{Name: "Oxford Shirt", Size: "M", Quantity: 2},
		{Name: "Chino Pants", Size: "32", Quantity: 1},
	}}
	assert.Equal(t, 3, order.ItemQuantity())
}

func TestOrder_ItemQuantity_MinimumOne(t *testing.T) {
	assert.Equal(t, 1, (&courier.Order{}).ItemQuantity())

	order := &courier.Order{Items: []courier.LineItem{{Name: "Belt"}}}
	assert.Equal(t, 1, order.ItemQuantity())
}

func TestOrder_ItemDescription(t *testing.T) {
	order := &courier.Order{Items: []courier.LineItem{
		{Name: "Oxford Shirt", Size: "M", Quantity: 2},
		{Name: "Chino Pants", Size: "32", Quantity: 1},
	}}
	assert.Equal(t, "Oxford Shirt (M) x2, Chino Pants (32) x1", order.ItemDescription())
}

func TestOrder_ItemDescription_NoSize(t *testing.T) {
	order := &courier.Order{Items: []courier.LineItem{{Name: "Gift Card", Quantity: 1}}}
	assert.Equal(t, "Gift Card x1", order.ItemDescription())
}

func TestOrder_ItemDescription_Override(t *testing.T) {
	order := &courier.Order{
		Items:               []courier.LineItem{{Name: "Oxford Shirt", Size: "M", Quantity: 2}},
		DescriptionOverride: "Fragile: glass buttons",
	}
	assert.Equal(t, "Fragile: glass buttons", order.ItemDescription())
}
