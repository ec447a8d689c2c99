package service

import (
	"context"
	"errors"

	"go.uber.org/mock/gomock"

	authmodels "icegrid/internal/auth/models"
	"icegrid/internal/sentinel"
	dErrors "icegrid/pkg/domain-errors"
)

func (s *ServiceSuite) TestLoginSuccess() {
	ctx := context.Background()
	user := s.newActiveUser()

	var created *authmodels.Session
	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user, nil)
	s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, session *authmodels.Session) error {
			created = session
			return nil
		})
	s.users.EXPECT().UpdateLastLogin(gomock.Any(), user.ID, s.now).Return(nil)

	pair, err := s.service.Login(ctx, "alice", testPassword, testUserAgent)
	s.Require().NoError(err)
	s.Require().NotNil(created)

	// Session expiry matches the refresh token lifetime, not the access one.
	s.Equal(s.now.Add(testRefreshTTL), created.ExpiresAt)
	s.Equal(user.ID, created.UserID)
	s.Contains(created.Device, "firefox")

	accessClaims, err := s.codec.Decode(pair.AccessToken)
	s.Require().NoError(err)
	refreshClaims, err := s.codec.Decode(pair.RefreshToken)
	s.Require().NoError(err)

	s.Equal(user.ID.String(), accessClaims.Subject)
	s.Equal(user.ID.String(), refreshClaims.Subject)
	// Both tokens bind to the one session that was created.
	s.Equal(created.ID.String(), accessClaims.ID)
	s.Equal(created.ID.String(), refreshClaims.ID)
	s.Equal("operator", accessClaims.Role)
	s.Equal(user.OrganizationID.String(), accessClaims.OrganizationID)
	s.Equal(testAccessTTL, pair.ExpiresIn)
}

func (s *ServiceSuite) TestLoginFailuresAreIndistinguishable() {
	ctx := context.Background()
	user := s.newActiveUser()

	s.users.EXPECT().FindByUsername(gomock.Any(), "nobody").Return(nil, sentinel.ErrNotFound)
	_, unknownErr := s.service.Login(ctx, "nobody", testPassword, testUserAgent)
	s.Require().Error(unknownErr)

	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user, nil)
	_, wrongPwErr := s.service.Login(ctx, "alice", "not-the-password", testUserAgent)
	s.Require().Error(wrongPwErr)

	inactive := s.newActiveUser()
	inactive.Status = "inactive"
	s.users.EXPECT().FindByUsername(gomock.Any(), "bob").Return(inactive, nil)
	_, inactiveErr := s.service.Login(ctx, "bob", testPassword, testUserAgent)
	s.Require().Error(inactiveErr)

	// All three paths produce the identical observable error.
	s.True(dErrors.HasCode(unknownErr, dErrors.CodeUnauthorized))
	s.Equal(unknownErr.Error(), wrongPwErr.Error())
	s.Equal(unknownErr.Error(), inactiveErr.Error())
}

func (s *ServiceSuite) TestLoginStoreFault() {
	ctx := context.Background()

	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(nil, errors.New("connection refused"))

	_, err := s.service.Login(ctx, "alice", testPassword, testUserAgent)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestLoginSessionCreateFault() {
	ctx := context.Background()
	user := s.newActiveUser()

	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user, nil)
	s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	_, err := s.service.Login(ctx, "alice", testPassword, testUserAgent)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestLoginSucceedsWhenLastLoginStampFails() {
	ctx := context.Background()
	user := s.newActiveUser()

	s.users.EXPECT().FindByUsername(gomock.Any(), "alice").Return(user, nil)
	s.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.users.EXPECT().UpdateLastLogin(gomock.Any(), user.ID, s.now).Return(errors.New("timeout"))

	pair, err := s.service.Login(ctx, "alice", testPassword, testUserAgent)
	s.Require().NoError(err)
	s.NotEmpty(pair.AccessToken)
}
