// Package storage opens the repositories of the configured storage engine.
package storage

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/adribv/edutool/core"
	"github.com/adribv/edutool/core/activity"
	"github.com/adribv/edutool/core/permission"
	"github.com/adribv/edutool/core/staff"
	"github.com/adribv/edutool/storage/cache"
	"github.com/adribv/edutool/storage/database"
	inmemdb "github.com/adribv/edutool/storage/database/inmem"
	mongorepos "github.com/adribv/edutool/storage/database/mongo"
	sqlxrepos "github.com/adribv/edutool/storage/database/sqlx"
)

type Repositories struct {
	Staff       staff.Repository
	Permissions permission.Repository
	Activities  activity.Repository

	// SQL is set for the postgres engine only.
	SQL *sql.DB

	closers []func() error
}

// Open opens the storage engine of conf and, when enabled, puts the redis cache in front of
// the record repositories. Postgres databases are created and migrated when missing;
// mongo indexes are ensured.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	repos := new(Repositories)

	switch conf.StorageEngine {
	case core.EngineMemory, "":
		db, err := inmemdb.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening in-memory database")
		}
		repos.Staff = inmemdb.NewStaffRepository(db)
		repos.Permissions = inmemdb.NewPermissionRepository(db)
		repos.Activities = inmemdb.NewActivityRepository(db)

	case core.EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		repos.closers = append(repos.closers, db.Close)
		if err = database.Migrate(db.DB); err != nil {
			_ = repos.Close()
			return nil, err
		}
		repos.SQL = db.DB
		repos.Staff = sqlxrepos.NewStaffRepository(db)
		repos.Permissions = sqlxrepos.NewPermissionRepository(db)
		repos.Activities = sqlxrepos.NewActivityRepository(db)

	case core.EngineMongo:
		client, db, err := mongorepos.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		repos.closers = append(repos.closers, func() error { return client.Disconnect(context.Background()) })
		if err = mongorepos.InitializeIndexes(ctx, db); err != nil {
			_ = repos.Close()
			return nil, err
		}
		repos.Staff = mongorepos.NewStaffRepository(db)
		repos.Permissions = mongorepos.NewPermissionRepository(db)
		repos.Activities = mongorepos.NewActivityRepository(db)

	default:
		return nil, errors.Errorf("unknown storage engine %q", conf.StorageEngine)
	}

	if conf.Redis.Enabled {
		client, err := cache.NewClient(ctx, conf)
		if err != nil {
			_ = repos.Close()
			return nil, err
		}
		repos.closers = append(repos.closers, client.Close)
		repos.Permissions = cache.NewPermissionRepository(repos.Permissions, client, conf.Redis.TTL, logger)
		repos.Activities = cache.NewActivityRepository(repos.Activities, client, conf.Redis.TTL, logger)
	}
	return repos, nil
}

// Close releases the connections in reverse order of opening and returns the first error.
func (r *Repositories) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}
