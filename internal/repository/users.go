package repository

import (
	"context"

	model "auction-house/internal/models"
	"auction-house/utils"
)

// DisplayUser resolves userID for display in events. A lookup failure is logged
// and yields a user carrying only the id, since events are best-effort.
func DisplayUser(ctx context.Context, users UserDirectory, userID string) model.User {
	user, err := users.GetUser(ctx, userID)
	if err != nil {
		utils.Warn("user lookup failed, publishing id only", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return model.User{UserID: userID}
	}
	return user
}
