// Package mongodb is the MongoDB storage backend, working on the "videos",
// "categories" and "users" collections.
//
// User mutations are single-document updates built from array operators
// ($push with $position, $pull, the positional $), guarded by filter
// conditions. When a guarded update matches nothing, a follow-up read tells
// the caller why.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

const (
	videosCollection     = "videos"
	usersCollection      = "users"
	categoriesCollection = "categories"
)

// MongoDB implements storage.Storage.
type MongoDB struct {
	client            *mongo.Client
	database          *mongo.Database
	connectionTimeout time.Duration
}

// New connects to uri, selects databaseName and ensures the user indexes.
func New(ctx context.Context, uri, databaseName string, connectionTimeout time.Duration) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `mongo.Connect()` calling: %w", err)
	}

	result := &MongoDB{
		client:            client,
		database:          client.Database(databaseName),
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while `result.Ping()` calling: %w", err)
	}

	_, err = result.users().Indexes().CreateMany(connectCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("in internal/db/mongodb/mongodb.go/New(): error while creating user indexes: %w", err)
	}

	return result, nil
}

func (db *MongoDB) users() *mongo.Collection {
	return db.database.Collection(usersCollection)
}

// normalizeID turns an ObjectID "_id" into its hex form, so documents
// inserted by other tools are addressable by the string ids used in URLs.
func normalizeID(doc map[string]interface{}) {
	if oid, ok := doc["_id"].(primitive.ObjectID); ok {
		doc["_id"] = oid.Hex()
	}
}

func (db *MongoDB) ListVideos(ctx context.Context) ([]models.Video, error) {
	cursor, err := db.database.Collection(videosCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	videos := []models.Video{}
	if err := cursor.All(ctx, &videos); err != nil {
		return nil, err
	}
	for _, v := range videos {
		normalizeID(v)
	}

	return videos, nil
}

func (db *MongoDB) ListCategories(ctx context.Context) ([]models.Category, error) {
	cursor, err := db.database.Collection(categoriesCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, err
	}

	categories := []models.Category{}
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, err
	}
	for _, c := range categories {
		normalizeID(c)
	}

	return categories, nil
}

func upsertModels[T ~map[string]interface{}](docs []T, id func(T) string) []mongo.WriteModel {
	result := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		result = append(
			result,
			mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": id(doc)}).
				SetReplacement(doc).
				SetUpsert(true),
		)
	}

	return result
}

func (db *MongoDB) SeedCatalog(ctx context.Context, catalog models.Catalog) error {
	if len(catalog.Videos) > 0 {
		_, err := db.database.Collection(videosCollection).BulkWrite(ctx, upsertModels(catalog.Videos, models.Video.ID))
		if err != nil {
			return fmt.Errorf("in internal/db/mongodb/mongodb.go: error while seeding videos: %w", err)
		}
	}

	if len(catalog.Categories) > 0 {
		_, err := db.database.Collection(categoriesCollection).BulkWrite(ctx, upsertModels(catalog.Categories, models.Category.ID))
		if err != nil {
			return fmt.Errorf("in internal/db/mongodb/mongodb.go: error while seeding categories: %w", err)
		}
	}

	return nil
}

func (db *MongoDB) CreateUser(ctx context.Context, usr *user.User) error {
	_, err := db.users().InsertOne(ctx, usr)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrUserAlreadyExists
	}

	return err
}

func (db *MongoDB) findUser(ctx context.Context, filter bson.M) (*user.User, error) {
	usr := &user.User{}
	err := db.users().FindOne(ctx, filter).Decode(usr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (db *MongoDB) GetUserByToken(ctx context.Context, token string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"token": token})
}

func (db *MongoDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"email": email})
}

func (db *MongoDB) CountUsers(ctx context.Context) (int64, error) {
	return db.users().CountDocuments(ctx, bson.D{})
}

// updateUser applies update to the user matching filter and returns the
// updated document. mongo.ErrNoDocuments is passed through untouched.
func (db *MongoDB) updateUser(ctx context.Context, filter, update bson.M) (*user.User, error) {
	usr := &user.User{}
	err := db.users().FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(usr)
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (db *MongoDB) userByID(ctx context.Context, userID string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"_id": userID})
}

func prependUpdate(field string, value interface{}) bson.M {
	return bson.M{
		"$push": bson.M{
			field: bson.M{
				"$each":     bson.A{value},
				"$position": 0,
			},
		},
	}
}

func (db *MongoDB) PrependToSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	video models.Video,
) (bool, []models.Video, error) {
	if !seq.Valid() {
		return false, nil, models.ErrUnknownSequence
	}
	field := string(seq)

	filter := bson.M{"_id": userID}
	if seq.Unique() {
		filter[field+"._id"] = bson.M{"$ne": video.ID()}
	}

	usr, err := db.updateUser(ctx, filter, prependUpdate(field, video))
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Either there is no such user or the video is already there.
		current, err := db.userByID(ctx, userID)
		if err != nil {
			return false, nil, err
		}
		return false, current.Sequence(seq), nil
	}
	if err != nil {
		return false, nil, err
	}

	return true, usr.Sequence(seq), nil
}

func (db *MongoDB) PullFromSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	videoID string,
) ([]models.Video, error) {
	if !seq.Valid() {
		return nil, models.ErrUnknownSequence
	}
	field := string(seq)

	usr, err := db.updateUser(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{field: bson.M{"_id": videoID}}},
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return usr.Sequence(seq), nil
}

func (db *MongoDB) ClearSequence(ctx context.Context, userID string, seq models.Sequence) error {
	if !seq.Valid() {
		return models.ErrUnknownSequence
	}

	result, err := db.users().UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{string(seq): bson.A{}}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrUserNotFound
	}

	return nil
}

func playlistsOf(usr *user.User) []models.Playlist {
	if usr.Playlists == nil {
		return []models.Playlist{}
	}

	return usr.Playlists
}

func (db *MongoDB) InsertPlaylist(ctx context.Context, userID string, playlist models.Playlist) ([]models.Playlist, error) {
	if playlist.Videos == nil {
		playlist.Videos = []models.Video{}
	}

	usr, err := db.updateUser(ctx, bson.M{"_id": userID}, prependUpdate("playlists", playlist))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return playlistsOf(usr), nil
}

// explainPlaylistMiss tells why a guarded playlist update matched nothing.
func (db *MongoDB) explainPlaylistMiss(ctx context.Context, userID, playlistID string, whenPlaylistExists error) error {
	usr, err := db.userByID(ctx, userID)
	if err != nil {
		return err
	}
	if models.FindPlaylist(usr.Playlists, playlistID) < 0 {
		return models.ErrPlaylistNotFound
	}

	return whenPlaylistExists
}

func (db *MongoDB) DeletePlaylist(ctx context.Context, userID, playlistID string) ([]models.Playlist, error) {
	usr, err := db.updateUser(
		ctx,
		bson.M{"_id": userID, "playlists.id": playlistID},
		bson.M{"$pull": bson.M{"playlists": bson.M{"id": playlistID}}},
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.explainPlaylistMiss(ctx, userID, playlistID, models.ErrPlaylistNotFound)
	}
	if err != nil {
		return nil, err
	}

	return playlistsOf(usr), nil
}

func playlistFrom(usr *user.User, playlistID string) models.Playlist {
	idx := models.FindPlaylist(usr.Playlists, playlistID)
	if idx < 0 {
		return models.Playlist{}
	}
	playlist := usr.Playlists[idx]
	if playlist.Videos == nil {
		playlist.Videos = []models.Video{}
	}

	return playlist
}

func (db *MongoDB) AddPlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	video models.Video,
) (models.Playlist, error) {
	usr, err := db.updateUser(
		ctx,
		bson.M{
			"_id": userID,
			"playlists": bson.M{"$elemMatch": bson.M{
				"id":         playlistID,
				"videos._id": bson.M{"$ne": video.ID()},
			}},
		},
		prependUpdate("playlists.$.videos", video),
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Playlist{}, db.explainPlaylistMiss(ctx, userID, playlistID, models.ErrVideoAlreadyInPlaylist)
	}
	if err != nil {
		return models.Playlist{}, err
	}

	return playlistFrom(usr, playlistID), nil
}

func (db *MongoDB) RemovePlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	usr, err := db.updateUser(
		ctx,
		bson.M{
			"_id": userID,
			"playlists": bson.M{"$elemMatch": bson.M{
				"id":         playlistID,
				"videos._id": videoID,
			}},
		},
		bson.M{"$pull": bson.M{"playlists.$.videos": bson.M{"_id": videoID}}},
	)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Playlist{}, db.explainPlaylistMiss(ctx, userID, playlistID, models.ErrVideoNotInPlaylist)
	}
	if err != nil {
		return models.Playlist{}, err
	}

	return playlistFrom(usr, playlistID), nil
}

// Ping verifies connectivity within the configured timeout.
func (db *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.client.Ping(ctxWithTimeout, readpref.Primary())
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}

// Drop removes the whole database. Tests use it to clean up.
func (db *MongoDB) Drop(ctx context.Context) error {
	return db.database.Drop(ctx)
}
