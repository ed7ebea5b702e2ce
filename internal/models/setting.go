package models

const (
	SettingStoreName              = "store_name"
	SettingCurrencyCode           = "currency_code"
	SettingCurrencySymbol         = "currency_symbol"
	SettingLogoURL                = "logo_url"
	SettingCurrencySymbolImageURL = "currency_symbol_image_url"
)

type Setting struct {
	Key   string  `gorm:"primaryKey" json:"key"`
	Value *string `json:"value"`
}
