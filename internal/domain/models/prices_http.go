package models

// Requests for the price HTTP endpoints. Unset seed fields fall back to the configured ingest defaults.

type SeedHTTPRequest struct {
	Assets     []string `json:"assets" validate:"omitempty,dive,required"`
	Quote      string   `json:"quote" validate:"omitempty,alpha,lowercase"`
	TargetRows *int64   `json:"target_rows" validate:"omitempty,gte=0"`
	ClearFirst *bool    `json:"clear_first"`
}

type MoversRequest struct {
	Window string `query:"window" json:"window"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type SeriesRequest struct {
	Asset string `param:"asset" json:"asset" validate:"required"`
	Limit int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=10000"`
}

type PageRequest struct {
	Page int `query:"page" json:"page" validate:"gte=0,lte=1000000"`
	Size int `query:"size" json:"size" default:"100" validate:"gte=1,lte=5000"`
}
