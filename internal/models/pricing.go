package models

import "fmt"

func IsProductOnSale(price int64, saleEnabled bool, salePrice int64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

// EffectiveProductPrice returns the unit amount in cents a buyer is charged.
func EffectiveProductPrice(price int64, saleEnabled bool, salePrice int64) int64 {
	if IsProductOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}

func ValidateSaleFields(price int64, saleEnabled bool, salePrice int64, salePriceSet bool) error {
	if !saleEnabled {
		return nil
	}
	if !salePriceSet {
		return fmt.Errorf("salePrice is required when saleEnabled is true")
	}
	if salePrice <= 0 {
		return fmt.Errorf("salePrice must be greater than 0")
	}
	if salePrice >= price {
		return fmt.Errorf("salePrice must be less than price")
	}
	return nil
}
