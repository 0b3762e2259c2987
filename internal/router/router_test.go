package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/vidlib/internal/auth"
	"github.com/patric-chuzhbe/vidlib/internal/catalog"
	"github.com/patric-chuzhbe/vidlib/internal/db/memorystorage"
	"github.com/patric-chuzhbe/vidlib/internal/db/storage"
	"github.com/patric-chuzhbe/vidlib/internal/ipchecker"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/mockstorage"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/ratelimit"
	"github.com/patric-chuzhbe/vidlib/internal/service"
)

const (
	testSigningKey    = "router-test-secret"
	testTrustedSubnet = "10.0.0.0/8"
)

var testCatalog = models.Catalog{
	Videos: []models.Video{
		{"_id": "v1", "title": "Intro to Go", "categoryName": "programming"},
		{"_id": "v2", "title": "Channels", "categoryName": "programming"},
		{"_id": "v3", "title": "Lo-fi beats", "categoryName": "music"},
	},
	Categories: []models.Category{
		{"_id": "c1", "categoryName": "programming"},
		{"_id": "c2", "categoryName": "music"},
	},
}

type testInitOption func(*testInitOptions)

type testInitOptions struct {
	mockStorage *mockstorage.StorageMock
	rateLimit   float64
	rateBurst   int
}

func withMockStorage(db *mockstorage.StorageMock) testInitOption {
	return func(options *testInitOptions) {
		options.mockStorage = db
	}
}

func withRateLimit(perSecond float64, burst int) testInitOption {
	return func(options *testInitOptions) {
		options.rateLimit = perSecond
		options.rateBurst = burst
	}
}

func mustNoError(t *testing.T, err error) {
	if t != nil {
		require.NoError(t, err)
		return
	}
	if err != nil {
		panic(err)
	}
}

// setupTestRouter serves the full API over a seeded in-memory store. t may
// be nil when called from examples.
func setupTestRouter(t *testing.T, optionsProto ...testInitOption) (*httptest.Server, storage.Storage) {
	options := &testInitOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := logger.Init("debug")
	mustNoError(t, err)

	var db storage.Storage
	if options.mockStorage != nil {
		db = options.mockStorage
	} else {
		memory, err := memorystorage.New()
		mustNoError(t, err)
		err = memory.SeedCatalog(context.Background(), testCatalog)
		mustNoError(t, err)
		db = memory
	}

	theAuth := auth.New(db, []byte(testSigningKey))
	svc := service.New(db, catalog.New(db, time.Minute), theAuth)

	trusted, err := ipchecker.New(testTrustedSubnet)
	mustNoError(t, err)

	theRouter := New(
		svc,
		theAuth,
		trusted,
		ratelimit.New(options.rateLimit, options.rateBurst),
		WithRequestTimeout(5*time.Second),
	)

	return httptest.NewServer(theRouter), db
}

type authResponse struct {
	EncodedToken string                 `json:"encodedToken"`
	Message      string                 `json:"message"`
	CreatedUser  map[string]interface{} `json:"createdUser"`
	FoundUser    map[string]interface{} `json:"foundUser"`
}

func signUp(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()

	var result authResponse
	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&result).
		Post(server.URL + "/api/auth/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), string(resp.Body()))
	require.NotEmpty(t, result.EncodedToken)

	return result.EncodedToken
}

func videoIDs(t *testing.T, body []byte, key string) []string {
	t.Helper()

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &raw))
	require.Contains(t, raw, key)

	var videos []models.Video
	require.NoError(t, json.Unmarshal(raw[key], &videos))

	result := []string{}
	for _, v := range videos {
		result = append(result, v.ID())
	}
	return result
}

func TestSignUpLogInLikeUnlike(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	token := signUp(t, server, "a@x.com", "p")

	var login authResponse
	resp, err := resty.New().R().
		SetBody(`{"email":"a@x.com","password":"p"}`).
		SetHeader("Content-Type", "application/json").
		SetResult(&login).
		Post(server.URL + "/api/auth/login")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, token, login.EncodedToken)
	assert.Equal(t, "Logged in successfully", login.Message)
	assert.Equal(t, "a@x.com", login.FoundUser["email"])
	assert.NotContains(t, login.FoundUser, "password")
	assert.NotContains(t, login.FoundUser, "passwordHash")

	client := resty.New().SetHeader("Authorization", token)

	resp, err = client.R().Post(server.URL + "/api/user/likes/v1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, []string{"v1"}, videoIDs(t, resp.Body(), "likes"))

	resp, err = client.R().Get(server.URL + "/api/user/likes")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, []string{"v1"}, videoIDs(t, resp.Body(), "likes"))

	resp, err = client.R().Delete(server.URL + "/api/user/likes/v1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = client.R().Get(server.URL + "/api/user/likes")
	require.NoError(t, err)
	assert.Equal(t, []string{}, videoIDs(t, resp.Body(), "likes"))
}

func TestCatalogRoutes(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	type tRequest struct {
		method string
		path   string
	}
	type tExpectedResponse struct {
		code int
		body *regexp.Regexp
	}
	type tTestCase struct {
		name             string
		request          tRequest
		expectedResponse tExpectedResponse
	}
	testCases := []tTestCase{
		{
			name:    "list videos",
			request: tRequest{http.MethodGet, "/api/videos"},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"videos"\s*:\s*\[.*"_id"\s*:\s*"v1".*"_id"\s*:\s*"v3"`),
			},
		},
		{
			name:    "one video",
			request: tRequest{http.MethodGet, "/api/video/v2"},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`\{\s*"video"\s*:\s*\{.*"title"\s*:\s*"Channels"`),
			},
		},
		{
			name:    "unknown video",
			request: tRequest{http.MethodGet, "/api/video/nope"},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				regexp.MustCompile(`\{\s*"message"\s*:\s*"Video not found"\s*\}`),
			},
		},
		{
			name:    "list categories",
			request: tRequest{http.MethodGet, "/api/categories"},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"categories"\s*:\s*\[.*"c2"`),
			},
		},
		{
			name:    "one category",
			request: tRequest{http.MethodGet, "/api/category/c2"},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"category"\s*:\s*\{.*"music"`),
			},
		},
		{
			name:    "unknown category",
			request: tRequest{http.MethodGet, "/api/category/nope"},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				regexp.MustCompile(`\{\s*"message"\s*:\s*"Category not found"\s*\}`),
			},
		},
		{
			name:    "unknown route",
			request: tRequest{http.MethodGet, "/api/nothing"},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				regexp.MustCompile(`"message"`),
			},
		},
		{
			name:    "ping",
			request: tRequest{http.MethodGet, "/ping"},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				nil,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := resty.New().R()
			req.Method = testCase.request.method
			req.URL = server.URL + testCase.request.path

			resp, err := req.Send()
			assert.NoError(t, err, "error making HTTP request")

			assert.Equal(t, testCase.expectedResponse.code, resp.StatusCode(), "Response code didn't match expected value")
			assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
			if resp.StatusCode() == http.StatusOK {
				assert.Equal(t, cacheControl, resp.Header().Get("Cache-Control"))
			} else {
				assert.Empty(t, resp.Header().Get("Cache-Control"))
			}

			if testCase.expectedResponse.body != nil {
				assert.NotNil(
					t,
					testCase.expectedResponse.body.FindIndex(resp.Body()),
					fmt.Sprintf(
						"The response body should match expected value (%s), got %s",
						testCase.expectedResponse.body.String(),
						resp.Body(),
					),
				)
			}
		})
	}
}

func TestAuthGate(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	foreign := auth.New(nil, []byte("another-secret"))
	foreignToken, err := foreign.Token("a@x.com", "p")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"missing token":   "",
		"garbage token":   "garbage",
		"foreign token":   foreignToken,
		"unknown account": mustToken(t, "ghost@x.com", "p"),
	} {
		t.Run(name, func(t *testing.T) {
			req := resty.New().R()
			if token != "" {
				req.SetHeader("Authorization", token)
			}
			resp, err := req.Get(server.URL + "/api/user/likes")
			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode())
			assert.JSONEq(t, `{"message":"Unauthorized access"}`, string(resp.Body()))
		})
	}
}

func mustToken(t *testing.T, email, password string) string {
	token, err := auth.New(nil, []byte(testSigningKey)).Token(email, password)
	require.NoError(t, err)
	return token
}

func TestLikes(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()
	client := resty.New().SetHeader("Authorization", signUp(t, server, "likes@x.com", "p"))

	resp, err := client.R().Post(server.URL + "/api/user/likes/v1")
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body()), `"Video liked"`)
	assert.Empty(t, resp.Header().Get("Cache-Control"), "mutations must not be cached")

	resp, err = client.R().Get(server.URL + "/api/user/likes")
	require.NoError(t, err)
	assert.Equal(t, cacheControl, resp.Header().Get("Cache-Control"))

	// The legacy singular route shares the same sequence.
	resp, err = client.R().Post(server.URL + "/api/user/like/v1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"Already liked"`)
	assert.Equal(t, []string{"v1"}, videoIDs(t, resp.Body(), "likes"))

	resp, err = client.R().Post(server.URL + "/api/user/likes/v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1"}, videoIDs(t, resp.Body(), "likes"))

	resp, err = client.R().Post(server.URL + "/api/user/likes/nope")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Video not found"}`, string(resp.Body()))

	resp, err = client.R().Delete(server.URL + "/api/user/like/v3")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, resp.Header().Get("Cache-Control"))
	assert.Contains(t, string(resp.Body()), `"Video removed from like"`)
	assert.Equal(t, []string{"v2", "v1"}, videoIDs(t, resp.Body(), "likes"))
}

func TestWatchlaterAndHistory(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()
	client := resty.New().SetHeader("Authorization", signUp(t, server, "seq@x.com", "p"))

	for _, id := range []string{"v1", "v2", "v1"} {
		resp, err := client.R().Post(server.URL + "/api/user/watchlater/" + id)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
		assert.Contains(t, string(resp.Body()), `"Added video to watchlater"`)

		resp, err = client.R().Post(server.URL + "/api/user/history/" + id)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode())
	}

	resp, err := client.R().Get(server.URL + "/api/user/watchlater")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v1"}, videoIDs(t, resp.Body(), "watchlater"))

	resp, err = client.R().Delete(server.URL + "/api/user/watchlater/v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"v2"}, videoIDs(t, resp.Body(), "watchlater"))
	assert.Contains(t, string(resp.Body()), `"Video removed from watchlater"`)

	resp, err = client.R().Get(server.URL + "/api/user/history")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v1"}, videoIDs(t, resp.Body(), "history"))

	resp, err = client.R().Delete(server.URL + "/api/user/history/v2")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v1"}, videoIDs(t, resp.Body(), "history"))

	resp, err = client.R().Delete(server.URL + "/api/user/history")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"history":[],"message":"History cleared"}`, string(resp.Body()))

	resp, err = client.R().Get(server.URL + "/api/user/history")
	require.NoError(t, err)
	assert.Equal(t, []string{}, videoIDs(t, resp.Body(), "history"))
}

type playlistsResponse struct {
	Message   string            `json:"message"`
	Playlist  models.Playlist   `json:"playlist"`
	Playlists []models.Playlist `json:"playlists"`
}

func TestPlaylists(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()
	client := resty.New().
		SetHeader("Authorization", signUp(t, server, "lists@x.com", "p")).
		SetHeader("Content-Type", "application/json")

	resp, err := client.R().SetBody(`{"title":"   "}`).Post(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Playlist name cannot be blank"}`, string(resp.Body()))

	resp, err = client.R().SetBody(`{"title":`).Post(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	resp, err = client.R().Get(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	assert.JSONEq(t, `{"playlists":[]}`, string(resp.Body()))

	var first, second playlistsResponse
	resp, err = client.R().SetBody(`{"title":"Music","description":"loud"}`).SetResult(&first).Post(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Equal(t, "Playlist created", first.Message)
	assert.Equal(t, "Music", first.Playlist.Title)
	assert.Empty(t, first.Playlist.Videos)

	resp, err = client.R().SetBody(`{"title":"Go"}`).SetResult(&second).Post(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	require.Len(t, second.Playlists, 2)
	assert.Equal(t, second.Playlist.ID, second.Playlists[0].ID)

	assert.Empty(t, resp.Header().Get("Cache-Control"))

	resp, err = client.R().Post(server.URL + "/api/user/playlists/" + second.Playlist.ID + "/video/v2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	musicURL := server.URL + "/api/user/playlists/" + first.Playlist.ID

	type tExpectedResponse struct {
		code int
		body *regexp.Regexp
	}
	steps := []struct {
		name     string
		method   string
		url      string
		expected tExpectedResponse
	}{
		{"add video", http.MethodPost, musicURL + "/video/v3", tExpectedResponse{http.StatusOK, regexp.MustCompile(`"playlist"\s*:.*"_id"\s*:\s*"v3"`)}},
		{"add duplicate", http.MethodPost, musicURL + "/video/v3", tExpectedResponse{http.StatusConflict, regexp.MustCompile(`Video is already added in your playlist`)}},
		{"add unknown video", http.MethodPost, musicURL + "/video/nope", tExpectedResponse{http.StatusNotFound, regexp.MustCompile(`Video not found`)}},
		{"add to unknown playlist", http.MethodPost, server.URL + "/api/user/playlists/nope/video/v1", tExpectedResponse{http.StatusNotFound, regexp.MustCompile(`Playlist not found`)}},
		{"get playlist", http.MethodGet, musicURL, tExpectedResponse{http.StatusOK, regexp.MustCompile(`"title"\s*:\s*"Music"`)}},
		{"get unknown playlist", http.MethodGet, server.URL + "/api/user/playlists/nope", tExpectedResponse{http.StatusNotFound, regexp.MustCompile(`Playlist not found`)}},
		{"remove absent video", http.MethodDelete, musicURL + "/video/v1", tExpectedResponse{http.StatusNotFound, regexp.MustCompile(`Video not found`)}},
		{"remove video", http.MethodDelete, musicURL + "/video/v3", tExpectedResponse{http.StatusOK, regexp.MustCompile(`Video removed from playlist`)}},
		{"delete unknown playlist", http.MethodDelete, server.URL + "/api/user/playlists/nope", tExpectedResponse{http.StatusNotFound, regexp.MustCompile(`Playlist not found`)}},
		{"delete playlist", http.MethodDelete, musicURL, tExpectedResponse{http.StatusOK, regexp.MustCompile(`Playlist deleted`)}},
	}
	for _, step := range steps {
		t.Run(step.name, func(t *testing.T) {
			req := client.R()
			req.Method = step.method
			req.URL = step.url

			resp, err := req.Send()
			require.NoError(t, err)
			assert.Equal(t, step.expected.code, resp.StatusCode(), string(resp.Body()))
			assert.NotNil(t, step.expected.body.FindIndex(resp.Body()), string(resp.Body()))
		})
	}

	var remaining playlistsResponse
	_, err = client.R().SetResult(&remaining).Get(server.URL + "/api/user/playlists")
	require.NoError(t, err)
	require.Len(t, remaining.Playlists, 1)
	assert.Equal(t, second.Playlist.ID, remaining.Playlists[0].ID)
	assert.Equal(t, "Go", remaining.Playlists[0].Title)
	require.Len(t, remaining.Playlists[0].Videos, 1)
	assert.Equal(t, "v2", remaining.Playlists[0].Videos[0].ID())
}

func TestAccounts(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	var created authResponse
	resp, err := resty.New().R().
		SetBody(`{"email":"b@x.com","password":"secret","firstName":"Bo","likes":["smuggled"]}`).
		SetHeader("Content-Type", "application/json").
		SetResult(&created).
		Post(server.URL + "/api/auth/signup")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Equal(t, "Signed up successfully", created.Message)
	assert.Equal(t, "Bo", created.CreatedUser["firstName"])
	assert.Equal(t, []interface{}{}, created.CreatedUser["likes"])
	assert.NotContains(t, created.CreatedUser, "password")

	testCases := []struct {
		name string
		path string
		body string
		code int
		want string
	}{
		{"duplicate email", "/api/auth/signup", `{"email":"b@x.com","password":"other"}`, http.StatusUnprocessableEntity, `{"message":"User already exist"}`},
		{"signup without password", "/api/auth/signup", `{"email":"c@x.com"}`, http.StatusBadRequest, `{"message":"Email and password are required"}`},
		{"malformed signup", "/api/auth/signup", `{"email"`, http.StatusBadRequest, `{"message":"Malformed request body"}`},
		{"wrong password", "/api/auth/login", `{"email":"b@x.com","password":"nope"}`, http.StatusUnauthorized, `{"message":"Wrong password"}`},
		{"unknown email", "/api/auth/login", `{"email":"ghost@x.com","password":"secret"}`, http.StatusNotFound, `{"message":"User not found"}`},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(server.URL + testCase.path)
			require.NoError(t, err)
			assert.Equal(t, testCase.code, resp.StatusCode())
			assert.JSONEq(t, testCase.want, string(resp.Body()))
		})
	}
}

func gzipString(input string) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	_, err := gzipWriter.Write([]byte(input))
	if err != nil {
		return nil, err
	}

	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func TestPostApiauthsignupForGzip(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()

	body, err := gzipString(`{"email":"gz@x.com","password":"p"}`)
	require.NoError(t, err)

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetBody(body).
		Post(server.URL + "/api/auth/signup")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Regexp(t, `"encodedToken"\s*:\s*"[\w-]+\.[\w-]+\.[\w-]+"`, string(resp.Body()))
}

func TestGetApiinternalstats(t *testing.T) {
	server, _ := setupTestRouter(t)
	defer server.Close()
	signUp(t, server, "stats@x.com", "p")

	resp, err := resty.New().R().SetHeader("X-Real-IP", "10.1.1.1").Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"users":1,"videos":3,"categories":2}`, string(resp.Body()))

	resp, err = resty.New().R().SetHeader("X-Real-IP", "192.168.1.1").Get(server.URL + "/api/internal/stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	server, _ := setupTestRouter(t, withRateLimit(0.001, 2))
	defer server.Close()

	codes := []int{}
	for i := 0; i < 3; i++ {
		resp, err := resty.New().R().
			SetHeader("Content-Type", "application/json").
			SetBody(`{"email":"ghost@x.com","password":"p"}`).
			Post(server.URL + "/api/auth/login")
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode())
	}
	assert.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)

	// Catalog routes are not limited.
	resp, err := resty.New().R().Get(server.URL + "/api/videos")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestStoreFailuresAreHidden(t *testing.T) {
	db := &mockstorage.StorageMock{}
	db.On("ListVideos", mock.Anything).Return(nil, errors.New("connection refused"))
	db.On("ListCategories", mock.Anything).Return(nil, errors.New("connection refused"))
	db.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	server, _ := setupTestRouter(t, withMockStorage(db))
	defer server.Close()

	for path, message := range map[string]string{
		"/api/videos":     "Unable to get videos, please try later!",
		"/api/categories": "Unable to get categories, please try later!",
		"/api/video/v1":   "Unable to get videos, please try later!",
		"/ping":           "Connecting to database failed",
	} {
		resp, err := resty.New().R().Get(server.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode(), path)
		assert.JSONEq(t, fmt.Sprintf(`{"message":%q}`, message), string(resp.Body()))
	}
}
