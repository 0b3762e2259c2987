package grpcserver

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/patric-chuzhbe/vidlib/internal/auth"
	"github.com/patric-chuzhbe/vidlib/internal/logger"
	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

type catalogReader interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	GetVideo(ctx context.Context, videoID string) (models.Video, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, categoryID string) (models.Category, error)
}

type libraryReader interface {
	Sequence(usr *user.User, seq models.Sequence) ([]models.Video, error)
	ListPlaylists(usr *user.User) []models.Playlist
}

type pinger interface {
	Ping(ctx context.Context) error
}

type libraryService interface {
	catalogReader
	libraryReader
	pinger
}

// LibraryHandler implements both CatalogServer and LibraryServer.
type LibraryHandler struct {
	svc libraryService
}

func NewLibraryHandler(svc libraryService) *LibraryHandler {
	return &LibraryHandler{svc: svc}
}

// toStruct converts a JSON-shaped payload through its JSON form, so that
// models.Video maps nested at any depth come out as Struct values.
func toStruct(payload interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	result := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, result); err != nil {
		return nil, err
	}

	return result, nil
}

func respond(payload interface{}, failure string) (*structpb.Struct, error) {
	result, err := toStruct(payload)
	if err != nil {
		logger.Log.Debugln("Error calling the `toStruct()`: ", zap.Error(err))
		return nil, status.Error(codes.Internal, failure)
	}

	return result, nil
}

func toStatus(err error, notFound, failure string) error {
	switch {
	case errors.Is(err, models.ErrVideoNotFound), errors.Is(err, models.ErrCategoryNotFound):
		return status.Error(codes.NotFound, notFound)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, failure)
	default:
		logger.Log.Errorln("gRPC call failed", zap.Error(err))
		return status.Error(codes.Internal, failure)
	}
}

func (h *LibraryHandler) ListVideos(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	videos, err := h.svc.ListVideos(ctx)
	if err != nil {
		return nil, toStatus(err, "", "Unable to get videos, please try later!")
	}

	return respond(map[string]interface{}{"videos": videos}, "Unable to get videos, please try later!")
}

func (h *LibraryHandler) GetVideo(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "video id must not be empty")
	}

	video, err := h.svc.GetVideo(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "Video not found", "Unable to get videos, please try later!")
	}

	return respond(map[string]interface{}{"video": video}, "Unable to get videos, please try later!")
}

func (h *LibraryHandler) ListCategories(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	categories, err := h.svc.ListCategories(ctx)
	if err != nil {
		return nil, toStatus(err, "", "Unable to get categories, please try later!")
	}

	return respond(map[string]interface{}{"categories": categories}, "Unable to get categories, please try later!")
}

func (h *LibraryHandler) GetCategory(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "category id must not be empty")
	}

	category, err := h.svc.GetCategory(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err, "Category not found", "Unable to get categories, please try later!")
	}

	return respond(map[string]interface{}{"category": category}, "Unable to get categories, please try later!")
}

func (h *LibraryHandler) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := h.svc.Ping(ctx); err != nil {
		return nil, status.Error(codes.Unavailable, "storage is unavailable")
	}

	return &emptypb.Empty{}, nil
}

// GetLibrary returns every sequence and playlist of the caller.
func (h *LibraryHandler) GetLibrary(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	usr, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.PermissionDenied, "Unauthorized access")
	}

	library := map[string]interface{}{
		"playlists": h.svc.ListPlaylists(usr),
	}
	for _, seq := range models.Sequences {
		videos, err := h.svc.Sequence(usr, seq)
		if err != nil {
			return nil, toStatus(err, "", "Unable to get library, please try later!")
		}
		library[string(seq)] = videos
	}

	return respond(library, "Unable to get library, please try later!")
}
