package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
)

// Identity maps external identity provider subjects to internal user IDs.
type Identity struct {
	userStore model.UserStore
	syncUsers bool
	logger    *logger.Logger
}

// NewIdentity creates the identity bridge. With syncUsers false the bridge
// only looks up pre-provisioned users by subject; with syncUsers true it
// finds users by email and creates missing ones.
func NewIdentity(userStore model.UserStore, syncUsers bool, logger *logger.Logger) *Identity {
	return &Identity{
		userStore: userStore,
		syncUsers: syncUsers,
		logger:    logger,
	}
}

// Resolve returns the internal user ID for an external subject.
func (s *Identity) Resolve(ctx context.Context, subject, email, name string) (uuid.UUID, error) {
	if subject == "" {
		return uuid.Nil, fmt.Errorf("subject is empty")
	}

	if !s.syncUsers {
		user, err := s.userStore.GetBySubject(ctx, subject)
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("Identity service: no user provisioned for subject",
				"subject", subject)
			return uuid.Nil, model.ErrNotFound
		}
		if err != nil {
			s.logger.Error("Identity service: failed to get user by subject",
				"subject", subject,
				"error", err.Error())
			return uuid.Nil, fmt.Errorf("identity resolution failed: %w", err)
		}
		return user.ID, nil
	}

	lookupEmail := strings.ToLower(strings.TrimSpace(email))
	if lookupEmail == "" {
		lookupEmail = placeholderEmail(subject)
	}

	user, err := s.userStore.GetByEmail(ctx, lookupEmail)
	if err == nil {
		return user.ID, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		s.logger.Error("Identity service: failed to get user by email",
			"subject", subject,
			"error", err.Error())
		return uuid.Nil, fmt.Errorf("identity resolution failed: %w", err)
	}

	created, err := s.userStore.Create(ctx, model.User{
		ID:          uuid.New(),
		Email:       lookupEmail,
		Name:        name,
		AuthSubject: subject,
	})
	if err != nil {
		s.logger.Error("Identity service: failed to create user",
			"subject", subject,
			"error", err.Error())
		return uuid.Nil, fmt.Errorf("identity resolution failed: %w", err)
	}

	s.logger.Info("Identity service: provisioned user for subject",
		"subject", subject,
		"user_id", created.ID)

	return created.ID, nil
}

// placeholderEmail synthesizes an address for tokens without an email claim.
// Subjects like "auth0|123" are flattened so the result stays a valid address.
func placeholderEmail(subject string) string {
	flat := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '_'
		}
	}, subject)
	return strings.ToLower(flat) + "@placeholder.local"
}
