package mg

import (
	"bytes"
	"context"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/reconcile"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	SummariesCollection = "summaries"
	TotalsCollection    = "totals"
	FilesCollection     = "fs.files"
)

// SummaryStore persists daily glucose summaries keyed by calendar day. Reads
// take inclusive year-day bounds; an empty bound is open.
type SummaryStore interface {
	WriteSummaries(ctx context.Context, dss []defs.DailyGlucoseSummary) error
	ReadSummaries(ctx context.Context, start, end string) ([]defs.DailyGlucoseSummary, error)
}

type TotalsStore interface {
	WriteTotals(ctx context.Context, its []defs.InsulinDailyTotal) error
	ReadTotals(ctx context.Context, start, end string) ([]defs.InsulinDailyTotal, error)
}

type FileStore interface {
	WriteFile(ctx context.Context, name string, r io.Reader) (string, error)
	ReadFile(ctx context.Context, fid string) (io.Reader, error)
	DeleteFile(ctx context.Context, fid string) error
}

type SnapshotStore interface {
	SummaryStore
	TotalsStore
	FileStore
}

type MongoStore struct {
	Client *mongo.Client
	Logger *zap.Logger

	DBName string
}

func New(ctx context.Context, cfg defs.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}

	mongoClient, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to mongo: %w", err)
	}

	dbName := cfg.Database
	if dbName == "" {
		dbName = defs.DefaultDB
	}

	return &MongoStore{
		Client: mongoClient,
		Logger: logger,
		DBName: dbName,
	}, nil
}

func (ms *MongoStore) Close(ctx context.Context) error {
	return ms.Client.Disconnect(ctx)
}

func (ms *MongoStore) upsert(ctx context.Context, collection string, filter bson.M, doc interface{}) error {
	ms.Logger.Debug(
		"upserting document",
		zap.String("collection", collection),
		zap.Any("filter", filter),
	)

	_, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		UpdateOne(ctx, filter,
			bson.M{"$set": doc},
			options.Update().SetUpsert(true),
		)
	if err != nil {
		ms.Logger.Debug(
			"unable to upsert document",
			zap.String("collection", collection),
			zap.Any("filter", filter),
			zap.Error(err),
		)
		return fmt.Errorf("unable to upsert document: %w", err)
	}

	return nil
}

func (ms *MongoStore) getDaysBetween(ctx context.Context, collection string, start, end string, slicePtr interface{}) error {
	ms.Logger.Debug(
		"reading days",
		zap.String("collection", collection),
		zap.String("start", start),
		zap.String("end", end),
	)

	bounds := bson.M{}
	if start != "" {
		bounds["$gte"] = start
	}
	if end != "" {
		bounds["$lte"] = end
	}
	filter := bson.M{}
	if len(bounds) > 0 {
		filter["yearday"] = bounds
	}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{primitive.E{Key: "yearday", Value: 1}})

	cur, err := ms.Client.
		Database(ms.DBName).
		Collection(collection).
		Find(ctx, filter, findOptions)
	if err != nil {
		ms.Logger.Debug(
			"unable to read days",
			zap.String("collection", collection),
			zap.Error(err),
		)
		return fmt.Errorf("unable to read days: %w", err)
	}

	return cur.All(ctx, slicePtr)
}

// WriteSummaries replaces the stored summary of every day present in dss.
func (ms *MongoStore) WriteSummaries(ctx context.Context, dss []defs.DailyGlucoseSummary) error {
	for _, ds := range dss {
		if err := ms.upsert(ctx, SummariesCollection, bson.M{"yearday": ds.YearDay}, ds); err != nil {
			return fmt.Errorf("unable to write summary %s: %w", ds.YearDay, err)
		}
	}
	return nil
}

func (ms *MongoStore) ReadSummaries(ctx context.Context, start, end string) ([]defs.DailyGlucoseSummary, error) {
	dss := make([]defs.DailyGlucoseSummary, 0)
	if err := ms.getDaysBetween(ctx, SummariesCollection, start, end, &dss); err != nil {
		return nil, fmt.Errorf("unable to read summaries: %w", err)
	}
	return dss, nil
}

// WriteTotals keeps the latest total row of each day, as Pair does.
func (ms *MongoStore) WriteTotals(ctx context.Context, its []defs.InsulinDailyTotal) error {
	for _, it := range reconcile.LatestTotals(its) {
		if err := ms.upsert(ctx, TotalsCollection, bson.M{"yearday": it.YearDay}, it); err != nil {
			return fmt.Errorf("unable to write totals %s: %w", it.YearDay, err)
		}
	}
	return nil
}

func (ms *MongoStore) ReadTotals(ctx context.Context, start, end string) ([]defs.InsulinDailyTotal, error) {
	its := make([]defs.InsulinDailyTotal, 0)
	if err := ms.getDaysBetween(ctx, TotalsCollection, start, end, &its); err != nil {
		return nil, fmt.Errorf("unable to read totals: %w", err)
	}
	return its, nil
}

func (ms *MongoStore) bucket() (*gridfs.Bucket, error) {
	bucket, err := gridfs.NewBucket(ms.Client.Database(ms.DBName))
	if err != nil {
		return nil, fmt.Errorf("unable to create a GridFS bucket: %w", err)
	}
	return bucket, nil
}

// WriteFile uploads r to GridFS and returns the hex id of the new file.
func (ms *MongoStore) WriteFile(ctx context.Context, name string, r io.Reader) (string, error) {
	bucket, err := ms.bucket()
	if err != nil {
		return "", err
	}

	oid, err := bucket.UploadFromStream(name, r)
	if err != nil {
		return "", fmt.Errorf("unable to upload from stream: %w", err)
	}

	ms.Logger.Debug(
		"uploaded file",
		zap.String("name", name),
		zap.String("id", oid.Hex()),
	)

	return oid.Hex(), nil
}

func (ms *MongoStore) ReadFile(ctx context.Context, fid string) (io.Reader, error) {
	bucket, err := ms.bucket()
	if err != nil {
		return nil, err
	}

	oid, err := primitive.ObjectIDFromHex(fid)
	if err != nil {
		return nil, fmt.Errorf("unable to create objectId from hex: %w", err)
	}

	var buf bytes.Buffer
	_, err = bucket.DownloadToStream(oid, &buf)
	if err != nil {
		return nil, fmt.Errorf("unable to download to stream: %w", err)
	}

	return &buf, nil
}

func (ms *MongoStore) DeleteFile(ctx context.Context, fid string) error {
	bucket, err := ms.bucket()
	if err != nil {
		return err
	}

	oid, err := primitive.ObjectIDFromHex(fid)
	if err != nil {
		return fmt.Errorf("unable to create objectId from hex: %w", err)
	}

	return bucket.Delete(oid)
}
