// server/cmd/api/stores.go
package main

import (
	"context"

	"spotmytrash-api-server/config"
	"spotmytrash-api-server/internal/blobstore"
	"spotmytrash-api-server/internal/database"
	"spotmytrash-api-server/internal/docstore"
	"spotmytrash-api-server/internal/garbage"
	"spotmytrash-api-server/internal/offline"
	"spotmytrash-api-server/internal/reachability"
	"spotmytrash-api-server/internal/routing"
	"spotmytrash-api-server/internal/upload"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// stores holds the remote clients for one process. Close releases them.
type stores struct {
	Docs   docstore.Store
	Blobs  blobstore.Store
	client *mongo.Client
}

func openStores(ctx context.Context, c config.Config) (*stores, error) {
	st := &stores{}

	switch c.Store.Driver {
	case "memory":
		st.Docs = docstore.NewMemory()
	case "mongo", "":
		client, err := database.Connect(ctx, c.Mongo)
		if err != nil {
			return nil, err
		}
		st.client = client
		st.Docs = docstore.NewMongo(client.Database(c.Mongo.DBName),
			docstore.WithRequeryRate(c.Mongo.RequeryRate, c.Mongo.RequeryBurst))
	default:
		return nil, eris.Errorf("unknown store driver %q", c.Store.Driver)
	}

	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		st.Close(ctx)
		return nil, err
	}
	st.Blobs = blobs
	return st, nil
}

func openBlobStore(ctx context.Context, c config.Config) (blobstore.Store, error) {
	switch c.Blob.Driver {
	case "memory":
		return blobstore.NewMemory(c.Blob.BaseURL), nil
	case "minio":
		m, err := blobstore.NewMinio(ctx, c.Minio)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "s3", "":
		s3, err := blobstore.NewS3(c.S3)
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return nil, eris.Errorf("unknown blob driver %q", c.Blob.Driver)
}

func (s *stores) Close(ctx context.Context) {
	if s.client == nil {
		return
	}
	if err := s.client.Disconnect(ctx); err != nil {
		zap.L().Warn("disconnect from MongoDB", zap.Error(err))
	}
	s.client = nil
}

// Database is the Mongo handle, or nil for the memory driver.
func (s *stores) Database(c config.Config) *mongo.Database {
	if s.client == nil {
		return nil
	}
	return s.client.Database(c.Mongo.DBName)
}

// newRouter wires both persistence paths. With st == nil only the offline path exists.
func newRouter(c config.Config, st *stores, local *offline.Store, observers ...routing.Observer) *routing.Router {
	if st == nil {
		return routing.New(reachability.Static(false), nil, local, observers...)
	}
	probe := reachability.NewPingProbe(st.Docs, c.Mongo.PingTimeout)
	return routing.New(probe, upload.New(st.Docs, st.Blobs), local, observers...)
}

func newRepository(c config.Config, docs docstore.Store, userID, orderBy string, limit int64) *garbage.Repository {
	if orderBy == "" {
		orderBy = c.Repository.OrderBy
	}
	if limit == 0 {
		limit = c.Repository.Limit
	}
	return garbage.NewRepository(docs,
		garbage.WithOrderField(orderBy),
		garbage.WithUserID(userID),
		garbage.WithLimit(limit),
		garbage.WithPhotoURLs(garbage.NewPhotoURLs(docs, c.Repository.PhotoURLCacheTTL)),
	)
}
