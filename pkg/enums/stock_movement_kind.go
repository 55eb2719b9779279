package enums

import "fmt"

// StockMovementKind labels an entry in the stock movement journal.
type StockMovementKind string

const (
	StockMovementReserve StockMovementKind = "reserve"
	StockMovementRelease StockMovementKind = "release"
	StockMovementAdjust  StockMovementKind = "adjust"
)

var validStockMovementKinds = []StockMovementKind{
	StockMovementReserve,
	StockMovementRelease,
	StockMovementAdjust,
}

func (k StockMovementKind) String() string {
	return string(k)
}

func (k StockMovementKind) IsValid() bool {
	for _, candidate := range validStockMovementKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseStockMovementKind(value string) (StockMovementKind, error) {
	for _, candidate := range validStockMovementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement kind %q", value)
}
