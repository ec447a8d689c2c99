package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"icegrid/internal/jwttoken"
	"icegrid/internal/sentinel"
	dErrors "icegrid/pkg/domain-errors"
)

func (s *ServiceSuite) TestRefreshMintsAccessBoundToSameSession() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)
	s.users.EXPECT().FindByID(gomock.Any(), user.ID).Return(user, nil)

	pair, err := s.service.Refresh(ctx, refresh)
	s.Require().NoError(err)

	claims, err := s.codec.Decode(pair.AccessToken)
	s.Require().NoError(err)
	s.Equal(jwttoken.TypeAccess, claims.TokenType)
	// Never a new session: the refreshed access token names the original one.
	s.Equal(session.ID.String(), claims.ID)
	// The refresh token comes back unchanged.
	s.Equal(refresh, pair.RefreshToken)
}

func (s *ServiceSuite) TestRefreshRejectsAccessToken() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	access := s.mintToken(jwttoken.TypeAccess, user, session.ID)

	_, err := s.service.Refresh(ctx, access)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(msgInvalidToken, err.Error())
}

func (s *ServiceSuite) TestRefreshRejectsRevokedSession() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	session.Revoked = true
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)

	_, err := s.service.Refresh(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshRejectsExpiredSession() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	session.ExpiresAt = s.now.Add(-time.Minute)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)

	_, err := s.service.Refresh(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshRejectsUnknownSession() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(nil, sentinel.ErrNotFound)

	_, err := s.service.Refresh(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshRejectsDeactivatedUser() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	deactivated := *user
	deactivated.Status = "inactive"
	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)
	s.users.EXPECT().FindByID(gomock.Any(), user.ID).Return(&deactivated, nil)

	_, err := s.service.Refresh(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshGarbageToken() {
	_, err := s.service.Refresh(context.Background(), "not-a-token")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefreshStoreFault() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(nil, errors.New("connection reset"))

	_, err := s.service.Refresh(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}
