package models

import "github.com/Keoroanthony/nuomi-store/internal/apperr"

// Category is the closed set of catalog sections. Stored rows hold these exact
// labels.
type Category string

const (
	CategoryKitchens           Category = "مطابخ"
	CategoryCabinets           Category = "خزائن"
	CategoryKitchenAccessories Category = "اكسسوارات مطابخ"
	CategoryCabinetAccessories Category = "اكسسوارات خزائن"
	CategoryDecor              Category = "ديكورات"
)

var categories = []Category{
	CategoryKitchens,
	CategoryCabinets,
	CategoryKitchenAccessories,
	CategoryCabinetAccessories,
	CategoryDecor,
}

func Categories() []Category {
	return append([]Category(nil), categories...)
}

func ParseCategory(raw string) (Category, error) {
	for _, c := range categories {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", apperr.Invalid("category", "unknown category %q", raw)
}
