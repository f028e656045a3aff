package services

import (
	"ridehail/internal/utils"
)

type PricingConfig struct {
	BasePrice      float64
	PricePerKm     float64
	PricePerMinute float64
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		BasePrice:      utils.DefaultBasePrice,
		PricePerKm:     utils.DefaultPricePerKm,
		PricePerMinute: utils.DefaultPricePerMinute,
	}
}

type PricingService interface {
	Estimate(distanceMeters, durationSeconds float64) float64
}

type pricingService struct {
	config PricingConfig
}

func NewPricingService(config PricingConfig) PricingService {
	return &pricingService{config: config}
}

// Estimate is base + per-km + per-minute, rounded to cents. It is the only
// place a ride price is computed.
func (s *pricingService) Estimate(distanceMeters, durationSeconds float64) float64 {
	price := s.config.BasePrice +
		distanceMeters/1000*s.config.PricePerKm +
		durationSeconds/60*s.config.PricePerMinute
	return utils.RoundMoney(price)
}
