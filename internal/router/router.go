// Package router exposes the video library over HTTP. Every response body is
// JSON and every error body is {"message": "..."}.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/vidlib/internal/auth"
	"github.com/patric-chuzhbe/vidlib/internal/gzippedhttp"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

// cacheControl lets a CDN serve successful reads from cache and revalidate
// in the background at most once per second.
const cacheControl = "s-max-age=1, stale-while-revalidate"

const (
	unauthorizedMessage     = "Unauthorized access"
	malformedRequestMessage = "Malformed request body"
)

type catalogReader interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	GetVideo(ctx context.Context, videoID string) (models.Video, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, categoryID string) (models.Category, error)
}

type sequenceKeeper interface {
	Sequence(usr *user.User, seq models.Sequence) ([]models.Video, error)
	AddToSequence(ctx context.Context, usr *user.User, seq models.Sequence, videoID string) (bool, []models.Video, error)
	RemoveFromSequence(ctx context.Context, usr *user.User, seq models.Sequence, videoID string) ([]models.Video, error)
	ClearSequence(ctx context.Context, usr *user.User, seq models.Sequence) error
}

type playlistKeeper interface {
	ListPlaylists(usr *user.User) []models.Playlist
	GetPlaylist(usr *user.User, playlistID string) (models.Playlist, error)
	CreatePlaylist(
		ctx context.Context,
		usr *user.User,
		request models.CreatePlaylistRequest,
	) (models.Playlist, []models.Playlist, error)
	AddVideoToPlaylist(ctx context.Context, usr *user.User, playlistID, videoID string) (models.Playlist, error)
	RemoveVideoFromPlaylist(ctx context.Context, usr *user.User, playlistID, videoID string) (models.Playlist, error)
	DeletePlaylist(ctx context.Context, usr *user.User, playlistID string) ([]models.Playlist, error)
}

type accountKeeper interface {
	SignUp(ctx context.Context, body map[string]interface{}) (*user.User, string, error)
	LogIn(ctx context.Context, request models.LogInRequest) (*user.User, string, error)
}

type statsKeeper interface {
	Stats(ctx context.Context) (models.InternalStatsResponse, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type libraryService interface {
	catalogReader
	sequenceKeeper
	playlistKeeper
	accountKeeper
	statsKeeper
	pinger
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

type trustedNetworkGuard interface {
	TrustedOnly(h http.Handler) http.Handler
}

type rateLimiter interface {
	Middleware(h http.Handler) http.Handler
}

// Router holds the HTTP handlers of the API.
type Router struct {
	svc libraryService
}

type initOptions struct {
	requestTimeout     time.Duration
	corsAllowedOrigins []string
}

// InitOption tunes New.
type InitOption func(*initOptions)

func WithRequestTimeout(timeout time.Duration) InitOption {
	return func(options *initOptions) {
		options.requestTimeout = timeout
	}
}

func WithCORSAllowedOrigins(origins []string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigins = origins
	}
}

// sequenceTexts are the response messages of one per-user sequence.
type sequenceTexts struct {
	added         string
	duplicate     string
	removed       string
	cleared       string
	getFailure    string
	addFailure    string
	removeFailure string
	clearFailure  string
}

var sequenceMessages = map[models.Sequence]sequenceTexts{
	models.SequenceLikes: {
		added:         "Video liked",
		duplicate:     "Already liked",
		removed:       "Video removed from like",
		getFailure:    "Unable to get likes, please try later!",
		addFailure:    "Unable to like this video, please try later!",
		removeFailure: "Unable to like this video, please try later!",
	},
	models.SequenceWatchLater: {
		added:         "Added video to watchlater",
		removed:       "Video removed from watchlater",
		getFailure:    "Unable to get watchlater, please try later!",
		addFailure:    "Unable to update watchlater, please try later!",
		removeFailure: "Unable to remove from watchlater, please try later!",
	},
	models.SequenceHistory: {
		added:         "Added video to history",
		removed:       "Video removed from history",
		cleared:       "History cleared",
		getFailure:    "Unable to get history, please try later!",
		addFailure:    "Unable to update history, please try later!",
		removeFailure: "Unable to remove from history, please try later!",
		clearFailure:  "Unable to clear history, please try later!",
	},
}

// clientErrors maps domain errors to their status and message. Anything not
// listed is answered with 500.
var clientErrors = []struct {
	err     error
	status  int
	message string
}{
	{models.ErrVideoNotFound, http.StatusNotFound, "Video not found"},
	{models.ErrVideoNotInPlaylist, http.StatusNotFound, "Video not found"},
	{models.ErrCategoryNotFound, http.StatusNotFound, "Category not found"},
	{models.ErrPlaylistNotFound, http.StatusNotFound, "Playlist not found"},
	{models.ErrVideoAlreadyInPlaylist, http.StatusConflict, "Video is already added in your playlist"},
	{models.ErrBlankPlaylistTitle, http.StatusBadRequest, "Playlist name cannot be blank"},
	{models.ErrInvalidCredentialsPayload, http.StatusBadRequest, "Email and password are required"},
	{models.ErrUserAlreadyExists, http.StatusUnprocessableEntity, "User already exist"},
	{models.ErrWrongPassword, http.StatusUnauthorized, "Wrong password"},
	// A user that vanished between the auth gate and the mutation.
	{models.ErrUserNotFound, http.StatusForbidden, unauthorizedMessage},
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)

	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder(response).Encode()`: ", zap.Error(err))
	}
}

// writeRead answers a successful read. Mutations go through writeJSON and
// are never cached.
func writeRead(response http.ResponseWriter, payload interface{}) {
	response.Header().Set("Cache-Control", cacheControl)
	writeJSON(response, http.StatusOK, payload)
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.MessageResponse{Message: message})
}

// writeError answers with the status of a known domain error, or logs err
// and answers 500 with failureMessage.
func writeError(response http.ResponseWriter, request *http.Request, err error, failureMessage string) {
	for _, known := range clientErrors {
		if errors.Is(err, known.err) {
			writeMessage(response, known.status, known.message)
			return
		}
	}

	logger.Log.Errorln(
		"request failed",
		"uri", request.RequestURI,
		"request_id", middleware.GetReqID(request.Context()),
		zap.Error(err),
	)
	writeMessage(response, http.StatusInternalServerError, failureMessage)
}

func caller(response http.ResponseWriter, request *http.Request) (*user.User, bool) {
	usr, ok := auth.UserFromContext(request.Context())
	if !ok {
		writeMessage(response, http.StatusForbidden, unauthorizedMessage)
	}

	return usr, ok
}

func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.svc.Ping(request.Context()); err != nil {
		writeError(response, request, err, "Connecting to database failed")
		return
	}

	writeRead(response, models.MessageResponse{Message: "pong"})
}

func (r *Router) GetApivideos(response http.ResponseWriter, request *http.Request) {
	videos, err := r.svc.ListVideos(request.Context())
	if err != nil {
		writeError(response, request, err, "Unable to get videos, please try later!")
		return
	}

	writeRead(response, map[string]interface{}{"videos": videos})
}

func (r *Router) GetApivideo(response http.ResponseWriter, request *http.Request) {
	video, err := r.svc.GetVideo(request.Context(), chi.URLParam(request, "videoID"))
	if err != nil {
		writeError(response, request, err, "Unable to get videos, please try later!")
		return
	}

	writeRead(response, map[string]interface{}{"video": video})
}

func (r *Router) GetApicategories(response http.ResponseWriter, request *http.Request) {
	categories, err := r.svc.ListCategories(request.Context())
	if err != nil {
		writeError(response, request, err, "Unable to get categories, please try later!")
		return
	}

	writeRead(response, map[string]interface{}{"categories": categories})
}

func (r *Router) GetApicategory(response http.ResponseWriter, request *http.Request) {
	category, err := r.svc.GetCategory(request.Context(), chi.URLParam(request, "categoryID"))
	if err != nil {
		writeError(response, request, err, "Unable to get categories, please try later!")
		return
	}

	writeRead(response, map[string]interface{}{"category": category})
}

// listSequence answers {<sequence>: [...]}.
func (r *Router) listSequence(seq models.Sequence) http.HandlerFunc {
	texts := sequenceMessages[seq]

	return func(response http.ResponseWriter, request *http.Request) {
		usr, ok := caller(response, request)
		if !ok {
			return
		}

		videos, err := r.svc.Sequence(usr, seq)
		if err != nil {
			writeError(response, request, err, texts.getFailure)
			return
		}

		writeRead(response, map[string]interface{}{string(seq): videos})
	}
}

func (r *Router) addToSequence(seq models.Sequence) http.HandlerFunc {
	texts := sequenceMessages[seq]

	return func(response http.ResponseWriter, request *http.Request) {
		usr, ok := caller(response, request)
		if !ok {
			return
		}

		added, videos, err := r.svc.AddToSequence(request.Context(), usr, seq, chi.URLParam(request, "videoID"))
		if err != nil {
			writeError(response, request, err, texts.addFailure)
			return
		}

		message := texts.added
		if !added {
			message = texts.duplicate
		}
		writeJSON(response, http.StatusOK, map[string]interface{}{
			string(seq): videos,
			"message":   message,
		})
	}
}

func (r *Router) removeFromSequence(seq models.Sequence) http.HandlerFunc {
	texts := sequenceMessages[seq]

	return func(response http.ResponseWriter, request *http.Request) {
		usr, ok := caller(response, request)
		if !ok {
			return
		}

		videos, err := r.svc.RemoveFromSequence(request.Context(), usr, seq, chi.URLParam(request, "videoID"))
		if err != nil {
			writeError(response, request, err, texts.removeFailure)
			return
		}

		writeJSON(response, http.StatusOK, map[string]interface{}{
			string(seq): videos,
			"message":   texts.removed,
		})
	}
}

func (r *Router) clearSequence(seq models.Sequence) http.HandlerFunc {
	texts := sequenceMessages[seq]

	return func(response http.ResponseWriter, request *http.Request) {
		usr, ok := caller(response, request)
		if !ok {
			return
		}

		if err := r.svc.ClearSequence(request.Context(), usr, seq); err != nil {
			writeError(response, request, err, texts.clearFailure)
			return
		}

		writeJSON(response, http.StatusOK, map[string]interface{}{
			string(seq): []models.Video{},
			"message":   texts.cleared,
		})
	}
}

func (r *Router) GetApiuserplaylists(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	writeRead(response, map[string]interface{}{"playlists": r.svc.ListPlaylists(usr)})
}

func (r *Router) GetApiuserplaylist(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	playlist, err := r.svc.GetPlaylist(usr, chi.URLParam(request, "playlistID"))
	if err != nil {
		writeError(response, request, err, "Unable to get playlists, please try later!")
		return
	}

	writeRead(response, map[string]interface{}{"playlist": playlist})
}

func (r *Router) PostApiuserplaylists(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	var body models.CreatePlaylistRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		logger.Log.Debugln("Error decoding the playlist request: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, malformedRequestMessage)
		return
	}

	playlist, playlists, err := r.svc.CreatePlaylist(request.Context(), usr, body)
	if err != nil {
		writeError(response, request, err, "Unable to create playlists, please try later!")
		return
	}

	writeJSON(response, http.StatusCreated, map[string]interface{}{
		"message":   "Playlist created",
		"playlist":  playlist,
		"playlists": playlists,
	})
}

func (r *Router) DeleteApiuserplaylist(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	playlists, err := r.svc.DeletePlaylist(request.Context(), usr, chi.URLParam(request, "playlistID"))
	if err != nil {
		writeError(response, request, err, "Unable to delete playlists, please try later!")
		return
	}

	writeJSON(response, http.StatusOK, map[string]interface{}{
		"message":   "Playlist deleted",
		"playlists": playlists,
	})
}

func (r *Router) PostApiuserplaylistvideo(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	playlist, err := r.svc.AddVideoToPlaylist(
		request.Context(),
		usr,
		chi.URLParam(request, "playlistID"),
		chi.URLParam(request, "videoID"),
	)
	if err != nil {
		writeError(response, request, err, "Unable to update playlists, please try later!")
		return
	}

	writeJSON(response, http.StatusOK, map[string]interface{}{"playlist": playlist})
}

func (r *Router) DeleteApiuserplaylistvideo(response http.ResponseWriter, request *http.Request) {
	usr, ok := caller(response, request)
	if !ok {
		return
	}

	playlist, err := r.svc.RemoveVideoFromPlaylist(
		request.Context(),
		usr,
		chi.URLParam(request, "playlistID"),
		chi.URLParam(request, "videoID"),
	)
	if err != nil {
		writeError(response, request, err, "Unable to update playlists, please try later!")
		return
	}

	writeJSON(response, http.StatusOK, map[string]interface{}{
		"message":  "Video removed from playlist",
		"playlist": playlist,
	})
}

func (r *Router) PostApiauthsignup(response http.ResponseWriter, request *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		logger.Log.Debugln("Error decoding the signup request: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, malformedRequestMessage)
		return
	}

	usr, token, err := r.svc.SignUp(request.Context(), body)
	if err != nil {
		writeError(response, request, err, "Unable to signup, please try later!")
		return
	}

	writeJSON(response, http.StatusCreated, map[string]interface{}{
		"createdUser":  usr,
		"encodedToken": token,
		"message":      "Signed up successfully",
	})
}

func (r *Router) PostApiauthlogin(response http.ResponseWriter, request *http.Request) {
	var body models.LogInRequest
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		logger.Log.Debugln("Error decoding the login request: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, malformedRequestMessage)
		return
	}

	usr, token, err := r.svc.LogIn(request.Context(), body)
	if errors.Is(err, models.ErrUserNotFound) {
		writeMessage(response, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(response, request, err, "Unable to login, please try later!")
		return
	}

	writeJSON(response, http.StatusOK, map[string]interface{}{
		"foundUser":    usr,
		"encodedToken": token,
		"message":      "Logged in successfully",
	})
}

func (r *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := r.svc.Stats(request.Context())
	if err != nil {
		writeError(response, request, err, "Unable to get stats, please try later!")
		return
	}

	writeRead(response, stats)
}

// New builds the HTTP API. The per-user routes sit behind theAuth, the
// account routes behind limiter and the internal routes behind trusted.
func New(
	svc libraryService,
	theAuth authenticator,
	trusted trustedNetworkGuard,
	limiter rateLimiter,
	optionsProto ...InitOption,
) *chi.Mux {
	options := &initOptions{
		requestTimeout:     10 * time.Second,
		corsAllowedOrigins: []string{"*"},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	myRouter := &Router{svc: svc}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: options.corsAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type", "Content-Encoding"},
			MaxAge:         300,
		}),
		middleware.Timeout(options.requestTimeout),
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)
	router.NotFound(func(response http.ResponseWriter, request *http.Request) {
		writeMessage(response, http.StatusNotFound, "Not found")
	})
	router.MethodNotAllowed(func(response http.ResponseWriter, request *http.Request) {
		writeMessage(response, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get(`/ping`, myRouter.GetPing)

	router.Route(`/api`, func(api chi.Router) {
		api.Get(`/videos`, myRouter.GetApivideos)
		api.Get(`/video/{videoID}`, myRouter.GetApivideo)
		api.Get(`/categories`, myRouter.GetApicategories)
		api.Get(`/category/{categoryID}`, myRouter.GetApicategory)

		api.With(limiter.Middleware).Post(`/auth/signup`, myRouter.PostApiauthsignup)
		api.With(limiter.Middleware).Post(`/auth/login`, myRouter.PostApiauthlogin)

		api.With(trusted.TrustedOnly).Get(`/internal/stats`, myRouter.GetApiinternalstats)

		api.Route(`/user`, func(userAPI chi.Router) {
			userAPI.Use(theAuth.AuthenticateUser)

			userAPI.Get(`/likes`, myRouter.listSequence(models.SequenceLikes))
			for _, prefix := range []string{`/likes`, `/like`} {
				userAPI.Post(prefix+`/{videoID}`, myRouter.addToSequence(models.SequenceLikes))
				userAPI.Delete(prefix+`/{videoID}`, myRouter.removeFromSequence(models.SequenceLikes))
			}

			userAPI.Get(`/watchlater`, myRouter.listSequence(models.SequenceWatchLater))
			userAPI.Post(`/watchlater/{videoID}`, myRouter.addToSequence(models.SequenceWatchLater))
			userAPI.Delete(`/watchlater/{videoID}`, myRouter.removeFromSequence(models.SequenceWatchLater))

			userAPI.Get(`/history`, myRouter.listSequence(models.SequenceHistory))
			userAPI.Delete(`/history`, myRouter.clearSequence(models.SequenceHistory))
			userAPI.Post(`/history/{videoID}`, myRouter.addToSequence(models.SequenceHistory))
			userAPI.Delete(`/history/{videoID}`, myRouter.removeFromSequence(models.SequenceHistory))

			userAPI.Get(`/playlists`, myRouter.GetApiuserplaylists)
			userAPI.Post(`/playlists`, myRouter.PostApiuserplaylists)
			userAPI.Get(`/playlists/{playlistID}`, myRouter.GetApiuserplaylist)
			userAPI.Delete(`/playlists/{playlistID}`, myRouter.DeleteApiuserplaylist)
			userAPI.Post(`/playlists/{playlistID}/video/{videoID}`, myRouter.PostApiuserplaylistvideo)
			userAPI.Delete(`/playlists/{playlistID}/video/{videoID}`, myRouter.DeleteApiuserplaylistvideo)
		})
	})

	return router
}
