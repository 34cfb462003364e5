package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrProductHasAuction = errors.New("product already has an auction")
)

// business logic errors
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidBid     = errors.New("invalid bid")
	ErrInvalidAuction = errors.New("invalid auction")
	ErrAuctionClosed  = errors.New("auction is not accepting bids")
	// ErrConflict means a conditional write lost the race; the caller may retry.
	ErrConflict = errors.New("conflict")
)
