// Package identity resolves who is making a request.
//
// Authentication itself lives outside this service; an upstream gateway is
// expected to have verified the caller and forwarded their user id.
package identity

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DefaultHeader carries the caller's user id
const DefaultHeader = "X-User-ID"

const contextKey = "auction.user_id"

// ErrNoIdentity is returned when a request carries no caller identity
var ErrNoIdentity = errors.New("no caller identity on request")

// Provider extracts the caller's user id from a request
type Provider interface {
	UserID(r *http.Request) (string, error)
}

// HeaderProvider trusts a user id forwarded in a request header
type HeaderProvider struct {
	Header string
}

// NewHeaderProvider returns a provider reading DefaultHeader
func NewHeaderProvider() HeaderProvider {
	return HeaderProvider{Header: DefaultHeader}
}

func (p HeaderProvider) UserID(r *http.Request) (string, error) {
	header := p.Header
	if header == "" {
		header = DefaultHeader
	}
	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" {
		return "", ErrNoIdentity
	}
	return id, nil
}

// SetUserID records the resolved caller on the gin context
func SetUserID(c *gin.Context, userID string) {
	c.Set(contextKey, userID)
}

// UserID returns the caller recorded by SetUserID, or "" if none was
func UserID(c *gin.Context) string {
	return c.GetString(contextKey)
}
