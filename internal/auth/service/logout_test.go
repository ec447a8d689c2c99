package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"icegrid/internal/jwttoken"
	dErrors "icegrid/pkg/domain-errors"
)

func (s *ServiceSuite) TestLogoutRevokesSession() {
	ctx := context.Background()
	user := s.newActiveUser()
	sessionID := uuid.New()
	access := s.mintToken(jwttoken.TypeAccess, user, sessionID)

	s.sessions.EXPECT().Revoke(gomock.Any(), sessionID).Return(true, nil)

	s.Require().NoError(s.service.Logout(ctx, access))
}

func (s *ServiceSuite) TestLogoutIsIdempotent() {
	ctx := context.Background()
	user := s.newActiveUser()
	sessionID := uuid.New()
	access := s.mintToken(jwttoken.TypeAccess, user, sessionID)

	s.sessions.EXPECT().Revoke(gomock.Any(), sessionID).Return(true, nil)
	s.sessions.EXPECT().Revoke(gomock.Any(), sessionID).Return(false, nil)

	// Both calls succeed identically; the second is a no-op.
	s.Require().NoError(s.service.Logout(ctx, access))
	s.Require().NoError(s.service.Logout(ctx, access))
}

func (s *ServiceSuite) TestLogoutWithExpiredTokenStillRevokes() {
	ctx := context.Background()
	user := s.newActiveUser()
	sessionID := uuid.New()
	access := s.mintToken(jwttoken.TypeAccess, user, sessionID)

	// Jump past the access token's expiry; the session id must still be
	// recoverable so the revoke lands.
	s.now = s.now.Add(testAccessTTL + time.Hour)

	s.sessions.EXPECT().Revoke(gomock.Any(), sessionID).Return(true, nil)
	s.Require().NoError(s.service.Logout(ctx, access))
}

func (s *ServiceSuite) TestLogoutWithGarbageTokenSucceeds() {
	// No store interaction expected at all.
	s.Require().NoError(s.service.Logout(context.Background(), "garbage"))
	s.Require().NoError(s.service.Logout(context.Background(), ""))
}

func (s *ServiceSuite) TestLogoutPropagatesStoreFault() {
	ctx := context.Background()
	user := s.newActiveUser()
	sessionID := uuid.New()
	access := s.mintToken(jwttoken.TypeAccess, user, sessionID)

	s.sessions.EXPECT().Revoke(gomock.Any(), sessionID).Return(false, errors.New("connection refused"))

	err := s.service.Logout(ctx, access)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestLogoutAll() {
	ctx := context.Background()
	userID := uuid.New()

	s.sessions.EXPECT().RevokeByUser(gomock.Any(), userID).Return(3, nil)

	revoked, err := s.service.LogoutAll(ctx, userID)
	s.Require().NoError(err)
	s.Equal(3, revoked)
}
