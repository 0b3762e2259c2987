// Package postgresdb is the PostgreSQL storage backend. Catalog documents and
// user sequences are kept as JSONB; every user mutation runs in a
// transaction holding the user's row lock.
package postgresdb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/vidlib/internal/models"
	"github.com/patric-chuzhbe/vidlib/internal/user"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const uniqueViolationCode = "23505"

// PostgresDB implements storage.Storage over database/sql with the pgx driver.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table before migrating. Tests use it to start
// from a clean schema.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to databaseDSN and applies the embedded migrations.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if err := result.Ping(ctx); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `result.Ping()` calling: %w",
				err,
			)
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, "migrations"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func listDocuments[T any](ctx context.Context, database queryer, query string) ([]T, error) {
	rows, err := database.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []T{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *PostgresDB) ListVideos(ctx context.Context) ([]models.Video, error) {
	return listDocuments[models.Video](ctx, db.database, `SELECT doc FROM videos ORDER BY position`)
}

func (db *PostgresDB) ListCategories(ctx context.Context) ([]models.Category, error) {
	return listDocuments[models.Category](ctx, db.database, `SELECT doc FROM categories ORDER BY position`)
}

func upsertDocument(ctx context.Context, transaction *sql.Tx, table, id string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	_, err = transaction.ExecContext(
		ctx,
		fmt.Sprintf(
			`
				INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)
					ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
			`,
			pq.QuoteIdentifier(table),
		),
		id,
		string(raw),
	)

	return err
}

// SeedCatalog upserts the whole catalog in one transaction.
func (db *PostgresDB) SeedCatalog(ctx context.Context, catalog models.Catalog) error {
	return db.inTransaction(ctx, func(transaction *sql.Tx) error {
		for _, video := range catalog.Videos {
			if err := upsertDocument(ctx, transaction, "videos", video.ID(), video); err != nil {
				return err
			}
		}
		for _, category := range catalog.Categories {
			if err := upsertDocument(ctx, transaction, "categories", category.ID(), category); err != nil {
				return err
			}
		}

		return nil
	})
}

func marshalJSONB(value interface{}) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) error {
	profile := usr.Profile
	if profile == nil {
		profile = map[string]interface{}{}
	}
	profileJSON, err := marshalJSONB(profile)
	if err != nil {
		return err
	}

	_, err = db.database.ExecContext(
		ctx,
		`
			INSERT INTO users (id, email, token, password_hash, profile)
				VALUES ($1, $2, $3, $4, $5::jsonb)
		`,
		usr.ID,
		usr.Email,
		usr.Token,
		usr.PasswordHash,
		profileJSON,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return models.ErrUserAlreadyExists
	}

	return err
}

func (db *PostgresDB) getUserBy(ctx context.Context, column, value string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		fmt.Sprintf(
			`
				SELECT id, email, token, password_hash, profile, likes, watchlater, history, playlists
					FROM users WHERE %s = $1
			`,
			pq.QuoteIdentifier(column),
		),
		value,
	)

	var (
		usr                                                = &user.User{}
		profile, likes, watchlater, history, playlistsJSON []byte
	)
	err := row.Scan(&usr.ID, &usr.Email, &usr.Token, &usr.PasswordHash, &profile, &likes, &watchlater, &history, &playlistsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}

	columns := []struct {
		raw []byte
		dst interface{}
	}{
		{profile, &usr.Profile},
		{likes, &usr.Likes},
		{watchlater, &usr.Watchlater},
		{history, &usr.History},
		{playlistsJSON, &usr.Playlists},
	}
	for _, column := range columns {
		if err := json.Unmarshal(column.raw, column.dst); err != nil {
			return nil, err
		}
	}

	return usr, nil
}

func (db *PostgresDB) GetUserByToken(ctx context.Context, token string) (*user.User, error) {
	return db.getUserBy(ctx, "token", token)
}

func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUserBy(ctx, "email", email)
}

func (db *PostgresDB) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := db.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)

	return count, err
}

func (db *PostgresDB) inTransaction(ctx context.Context, fn func(transaction *sql.Tx) error) error {
	transaction, err := db.database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(transaction); err != nil {
		if rollbackErr := transaction.Rollback(); rollbackErr != nil {
			return errors.Join(err, rollbackErr)
		}
		return err
	}

	return transaction.Commit()
}

// mutateColumn locks the user's row, passes the decoded column to fn and
// stores fn's result. The lock serialises concurrent mutations of the same
// user, so none of them is lost.
func mutateColumn[T any](
	ctx context.Context,
	db *PostgresDB,
	userID string,
	column string,
	fn func(current T) (T, error),
) (T, error) {
	var result T
	quoted := pq.QuoteIdentifier(column)

	err := db.inTransaction(ctx, func(transaction *sql.Tx) error {
		var raw []byte
		err := transaction.QueryRowContext(
			ctx,
			fmt.Sprintf(`SELECT %s FROM users WHERE id = $1 FOR UPDATE`, quoted),
			userID,
		).Scan(&raw)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrUserNotFound
			}
			return err
		}

		var current T
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}

		updated, err := fn(current)
		if err != nil {
			return err
		}

		updatedJSON, err := marshalJSONB(updated)
		if err != nil {
			return err
		}

		_, err = transaction.ExecContext(
			ctx,
			fmt.Sprintf(`UPDATE users SET %s = $2::jsonb WHERE id = $1`, quoted),
			userID,
			updatedJSON,
		)
		if err != nil {
			return err
		}

		result = updated
		return nil
	})

	return result, err
}

func sequenceColumn(seq models.Sequence) (string, error) {
	if !seq.Valid() {
		return "", models.ErrUnknownSequence
	}

	return string(seq), nil
}

func (db *PostgresDB) PrependToSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	video models.Video,
) (bool, []models.Video, error) {
	column, err := sequenceColumn(seq)
	if err != nil {
		return false, nil, err
	}

	added := false
	videos, err := mutateColumn(ctx, db, userID, column, func(current []models.Video) ([]models.Video, error) {
		var result []models.Video
		result, added = models.PrependVideo(current, video, seq.Unique())
		return result, nil
	})
	if err != nil {
		return false, nil, err
	}

	return added, videos, nil
}

func (db *PostgresDB) PullFromSequence(
	ctx context.Context,
	userID string,
	seq models.Sequence,
	videoID string,
) ([]models.Video, error) {
	column, err := sequenceColumn(seq)
	if err != nil {
		return nil, err
	}

	return mutateColumn(ctx, db, userID, column, func(current []models.Video) ([]models.Video, error) {
		return models.RemoveVideo(current, videoID), nil
	})
}

func (db *PostgresDB) ClearSequence(ctx context.Context, userID string, seq models.Sequence) error {
	column, err := sequenceColumn(seq)
	if err != nil {
		return err
	}

	_, err = mutateColumn(ctx, db, userID, column, func([]models.Video) ([]models.Video, error) {
		return []models.Video{}, nil
	})

	return err
}

func (db *PostgresDB) InsertPlaylist(ctx context.Context, userID string, playlist models.Playlist) ([]models.Playlist, error) {
	return mutateColumn(ctx, db, userID, "playlists", func(current []models.Playlist) ([]models.Playlist, error) {
		return models.PrependPlaylist(current, playlist), nil
	})
}

func (db *PostgresDB) DeletePlaylist(ctx context.Context, userID, playlistID string) ([]models.Playlist, error) {
	return mutateColumn(ctx, db, userID, "playlists", func(current []models.Playlist) ([]models.Playlist, error) {
		return models.RemovePlaylist(current, playlistID)
	})
}

func (db *PostgresDB) AddPlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	video models.Video,
) (models.Playlist, error) {
	var playlist models.Playlist
	_, err := mutateColumn(ctx, db, userID, "playlists", func(current []models.Playlist) ([]models.Playlist, error) {
		updated, p, err := models.AddVideoToPlaylist(current, playlistID, video)
		playlist = p
		return updated, err
	})
	if err != nil {
		return models.Playlist{}, err
	}

	return playlist, nil
}

func (db *PostgresDB) RemovePlaylistVideo(
	ctx context.Context,
	userID string,
	playlistID string,
	videoID string,
) (models.Playlist, error) {
	var playlist models.Playlist
	_, err := mutateColumn(ctx, db, userID, "playlists", func(current []models.Playlist) ([]models.Playlist, error) {
		updated, p, err := models.RemoveVideoFromPlaylist(current, playlistID, videoID)
		playlist = p
		return updated, err
	})
	if err != nil {
		return models.Playlist{}, err
	}

	return playlist, nil
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
