package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new unique identifier string for auctions, bids and stream observers
func GenerateID() string {
	return uuid.New().String()
}
