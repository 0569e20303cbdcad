package models

// Requests for dataset HTTP endpoints. Defined in domain for consistency and reuse.

type FeaturesRequest struct {
	ReturnPeriod int    `query:"return_period" json:"return_period" default:"5" validate:"gte=1,lte=60"`
	AsOf         string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}

type BitcoinRequest struct {
	Days int `query:"days" json:"days" default:"60" validate:"gte=1,lte=365"`
}

type ExportRequest struct {
	AsOf string `query:"as_of" json:"as_of" validate:"omitempty,datetime=2006-01-02"`
}
