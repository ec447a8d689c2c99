package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/jwttoken"
	dErrors "icegrid/pkg/domain-errors"
)

func (s *ServiceSuite) TestAuthenticateTokenProducesPrincipal() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	access := s.mintToken(jwttoken.TypeAccess, user, session.ID)

	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)

	principal, err := s.service.AuthenticateToken(ctx, access)
	s.Require().NoError(err)
	s.Equal(user.ID, principal.UserID)
	s.Equal(authmodels.RoleOperator, principal.Role)
	s.Equal(user.OrganizationID, principal.OrganizationID)
	s.Equal(session.ID, principal.SessionID)
}

func (s *ServiceSuite) TestAuthenticateTokenRejectsRefreshToken() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	refresh := s.mintToken(jwttoken.TypeRefresh, user, session.ID)

	_, err := s.service.AuthenticateToken(ctx, refresh)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal(msgInvalidToken, err.Error())
}

func (s *ServiceSuite) TestRevocationBeatsUnexpiredToken() {
	ctx := context.Background()
	user := s.newActiveUser()
	session := s.newActiveSession(user.ID)
	access := s.mintToken(jwttoken.TypeAccess, user, session.ID)

	// The token's own exp is far in the future, but the session is gone.
	session.Revoked = true
	s.sessions.EXPECT().FindByID(gomock.Any(), session.ID).Return(session, nil)

	_, err := s.service.AuthenticateToken(ctx, access)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	// The response never says "revoked" - the generic message hides the cause.
	s.Equal(msgInvalidToken, err.Error())
}

func (s *ServiceSuite) TestAuthenticateTokenRejectsUnknownRole() {
	ctx := context.Background()
	sessionID := uuid.New()
	token, err := s.codec.Encode(jwttoken.TypeAccess, uuid.New(), "superuser", "", sessionID)
	s.Require().NoError(err)

	session := s.newActiveSession(uuid.New())
	session.ID = sessionID
	s.sessions.EXPECT().FindByID(gomock.Any(), sessionID).Return(session, nil)

	_, err = s.service.AuthenticateToken(ctx, token)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestListSessions() {
	ctx := context.Background()
	userID := uuid.New()
	sessions := []*authmodels.Session{
		s.newActiveSession(userID),
		s.newActiveSession(userID),
	}

	s.sessions.EXPECT().ListByUser(gomock.Any(), userID).Return(sessions, nil)

	got, err := s.service.ListSessions(ctx, userID)
	s.Require().NoError(err)
	s.Len(got, 2)
}
