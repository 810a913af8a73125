package reservation

import (
	"fmt"

	"github.com/iliyamo/seat-reservation-engine/internal/model"
)

// PricingEngine computes seat totals from a seat map.  It holds no state
// of its own; the same seats always price to the same total.  Discounts
// and promotions are applied by callers on top of this result.
type PricingEngine struct {
	seatMap *SeatMap
}

// NewPricingEngine returns a pricing engine for one session's seat map.
func NewPricingEngine(m *SeatMap) PricingEngine {
	return PricingEngine{seatMap: m}
}

// Price returns the sum of the base prices of ids.  Duplicates are
// counted once.
func (p PricingEngine) Price(ids []model.SeatID) (int64, error) {
	lines, err := p.Breakdown(ids)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, l := range lines {
		total += l.Price
	}
	return total, nil
}

// Breakdown returns one price line per distinct seat, row-major.
func (p PricingEngine) Breakdown(ids []model.SeatID) ([]model.PriceLine, error) {
	if p.seatMap == nil {
		return nil, fmt.Errorf("pricing: no seat map")
	}
	ids, err := p.seatMap.normalize(ids)
	if err != nil {
		return nil, err
	}
	lines := make([]model.PriceLine, len(ids))
	for i, id := range ids {
		price, _ := p.seatMap.BasePrice(id)
		lines[i] = model.PriceLine{SeatID: id, Label: id.Label(), Price: price}
	}
	return lines, nil
}
