// internal/adapters/out/firestore/user_profile_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
)

// UserProfileRepositoryFS merges partial patches into users/{userId}.
type UserProfileRepositoryFS struct {
	Client *firestore.Client
}

func NewUserProfileRepositoryFS(client *firestore.Client) *UserProfileRepositoryFS {
	return &UserProfileRepositoryFS{Client: client}
}

func (r *UserProfileRepositoryFS) MergeUserData(ctx context.Context, userID string, data map[string]any) error {
	if r == nil || r.Client == nil {
		return errors.New("user_profile_repository_fs: firestore client is nil")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("user_profile_repository_fs: userID is empty")
	}
	if len(data) == 0 {
		return nil
	}

	_, err := r.Client.Collection("users").Doc(uid).Set(ctx, data, firestore.MergeAll)
	return err
}
