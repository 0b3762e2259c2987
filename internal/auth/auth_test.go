package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type fakeUsers struct {
	byToken map[string]*user.User
	err     error
}

func (f *fakeUsers) GetUserByToken(_ context.Context, token string) (*user.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	usr, ok := f.byToken[token]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return usr, nil
}

func TestTokenIsDeterministic(t *testing.T) {
	a := New(nil, []byte("secret"))

	first, err := a.Token("a@x.com", "p")
	require.NoError(t, err)
	second, err := a.Token("a@x.com", "p")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := a.Token("a@x.com", "q")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	foreign, err := New(nil, []byte("another")).Token("a@x.com", "p")
	require.NoError(t, err)
	assert.NotEqual(t, first, foreign)

	assert.NotContains(t, first, "\"p\"")
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("p")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "p"))
	assert.ErrorIs(t, CheckPassword(hash, "q"), models.ErrWrongPassword)
}

func TestAuthenticateUser(t *testing.T) {
	a := New(&fakeUsers{byToken: map[string]*user.User{}}, []byte("secret"))
	token, err := a.Token("a@x.com", "p")
	require.NoError(t, err)
	a.db.(*fakeUsers).byToken[token] = user.New("u1", "a@x.com", token, "", nil)
	a.db.(*fakeUsers).byToken["opaque-stored-token"] = user.New("u2", "b@x.com", "opaque-stored-token", "", nil)

	handler := a.AuthenticateUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		usr, ok := UserFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(usr.ID))
	}))

	type tExpectedResponse struct {
		code int
		body string
	}
	type tTestCase struct {
		name     string
		token    string
		expected tExpectedResponse
	}
	testCases := []tTestCase{
		{
			name:     "known token",
			token:    token,
			expected: tExpectedResponse{code: http.StatusOK, body: "u1"},
		},
		{
			name:     "stored token that is not a JWT",
			token:    "opaque-stored-token",
			expected: tExpectedResponse{code: http.StatusOK, body: "u2"},
		},
		{
			name:     "missing header",
			token:    "",
			expected: tExpectedResponse{code: http.StatusForbidden, body: `{"message":"Unauthorized access"}` + "\n"},
		},
		{
			name:     "garbage token",
			token:    "not-a-token",
			expected: tExpectedResponse{code: http.StatusForbidden, body: `{"message":"Unauthorized access"}` + "\n"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/api/user/likes", nil)
			if testCase.token != "" {
				request.Header.Set("Authorization", testCase.token)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, testCase.expected.code, recorder.Code)
			assert.Equal(t, testCase.expected.body, recorder.Body.String())
		})
	}
}

func TestAuthenticateUserValidButUnknownToken(t *testing.T) {
	a := New(&fakeUsers{byToken: map[string]*user.User{}}, []byte("secret"))
	token, err := a.Token("ghost@x.com", "p")
	require.NoError(t, err)

	_, err = a.UserByToken(context.Background(), token)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestAuthenticateUserStoreFailure(t *testing.T) {
	a := New(&fakeUsers{err: errors.New("connection refused")}, []byte("secret"))
	token, err := a.Token("a@x.com", "p")
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodGet, "/api/user/likes", nil)
	request.Header.Set("Authorization", token)
	recorder := httptest.NewRecorder()

	a.AuthenticateUser(http.NotFoundHandler()).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), "connection refused")
}

func TestUserByTokenSurvivesSecretRotation(t *testing.T) {
	users := &fakeUsers{byToken: map[string]*user.User{}}
	token, err := New(users, []byte("old-secret")).Token("a@x.com", "p")
	require.NoError(t, err)
	users.byToken[token] = user.New("u1", "a@x.com", token, "", nil)

	usr, err := New(users, []byte("new-secret")).UserByToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", usr.ID)
}
