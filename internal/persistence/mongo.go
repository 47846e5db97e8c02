package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
)

const (
	documentsCollection = "documents"
	auditCollection     = "audit_log"
)

type mongoDocument struct {
	Kind           string    `bson:"kind"`
	OrganizationID string    `bson:"organization_id"`
	EntityID       string    `bson:"entity_id"`
	Status         string    `bson:"status"`
	Version        int64     `bson:"version"`
	Body           bson.Raw  `bson:"body"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type mongoAudit struct {
	ID             string         `bson:"_id"`
	OrganizationID string         `bson:"organization_id"`
	EntityKind     string         `bson:"entity_kind"`
	EntityID       string         `bson:"entity_id"`
	ActorID        string         `bson:"actor_id"`
	ActorRole      string         `bson:"actor_role"`
	Action         string         `bson:"action"`
	FromStatus     string         `bson:"from_status,omitempty"`
	ToStatus       string         `bson:"to_status,omitempty"`
	Version        int64          `bson:"version"`
	OldValue       map[string]any `bson:"old_value,omitempty"`
	NewValue       map[string]any `bson:"new_value,omitempty"`
	CreatedAt      time.Time      `bson:"created_at"`
}

// MongoStore keeps documents in one collection with a unique
// (kind, organization_id, entity_id) index. Transactions need a replica set.
type MongoStore struct {
	client *mongo.Client
	docs   *mongo.Collection
	audit  *mongo.Collection
}

// NewMongoStore connects to cfg.URI and ensures indexes.
func NewMongoStore(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errors.New("MONGO_URI not provided")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	store := &MongoStore{
		client: client,
		docs:   db.Collection(documentsCollection),
		audit:  db.Collection(auditCollection),
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	logger.Info("connected to mongo", zap.String("database", cfg.Database))
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.docs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "organization_id", Value: 1}, {Key: "entity_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "status", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create document indexes: %w", err)
	}
	_, err = s.audit.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "entity_kind", Value: 1}, {Key: "entity_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, doc *repository.Document) error {
	body, err := toBSON(doc.Body)
	if err != nil {
		return err
	}
	_, err = s.docs.InsertOne(ctx, bson.M{
		"kind":            string(doc.Kind),
		"organization_id": doc.OrganizationID,
		"entity_id":       doc.ID,
		"status":          doc.Status,
		"version":         doc.Version,
		"body":            body,
		"created_at":      doc.CreatedAt,
		"updated_at":      doc.UpdatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

func (s *MongoStore) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	var doc mongoDocument
	err := s.docs.FindOne(ctx, bson.M{
		"kind":            string(kind),
		"organization_id": organizationID,
		"entity_id":       id,
	}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDocument()
}

func (s *MongoStore) List(ctx context.Context, filter repository.ListFilter) ([]repository.Document, error) {
	query := bson.M{"kind": string(filter.Kind), "organization_id": filter.OrganizationID}
	if len(filter.Statuses) > 0 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "entity_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := s.docs.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []repository.Document
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out, err := doc.toDocument()
		if err != nil {
			return nil, err
		}
		result = append(result, *out)
	}
	return result, cursor.Err()
}

// ConditionalUpdate is a single FindOneAndUpdate; a filter miss is reported as
// (nil, nil).
func (s *MongoStore) ConditionalUpdate(ctx context.Context, filter repository.Filter, update repository.Update) (*repository.Document, error) {
	body, err := toBSON(update.Body)
	if err != nil {
		return nil, err
	}
	query := bson.M{
		"kind":            string(filter.Kind),
		"organization_id": filter.OrganizationID,
		"entity_id":       filter.ID,
		"version":         filter.ExpectedVersion,
	}
	if filter.ExpectedStatus != "" {
		query["status"] = filter.ExpectedStatus
	}
	change := bson.M{
		"$set": bson.M{"status": update.Status, "body": body, "updated_at": update.UpdatedAt},
		"$inc": bson.M{"version": 1},
	}

	var doc mongoDocument
	err = s.docs.FindOneAndUpdate(ctx, query, change,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toDocument()
}

func (s *MongoStore) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := s.audit.InsertOne(ctx, mongoAudit{
		ID:             entry.ID,
		OrganizationID: entry.OrganizationID,
		EntityKind:     string(entry.EntityKind),
		EntityID:       entry.EntityID,
		ActorID:        entry.Actor.UserID,
		ActorRole:      string(entry.Actor.Role),
		Action:         string(entry.Action),
		FromStatus:     entry.FromStatus,
		ToStatus:       entry.ToStatus,
		Version:        entry.Version,
		OldValue:       entry.OldValue,
		NewValue:       entry.NewValue,
		CreatedAt:      entry.CreatedAt,
	})
	return err
}

func (s *MongoStore) ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error) {
	cursor, err := s.audit.Find(ctx,
		bson.M{"organization_id": organizationID, "entity_kind": string(kind), "entity_id": entityID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "version", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []mongoAudit
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	result := make([]domain.AuditEntry, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEntry{
			ID:             row.ID,
			OrganizationID: row.OrganizationID,
			EntityKind:     domain.EntityKind(row.EntityKind),
			EntityID:       row.EntityID,
			Actor:          domain.Actor{UserID: row.ActorID, Role: domain.Role(row.ActorRole)},
			Action:         domain.AuditAction(row.Action),
			FromStatus:     row.FromStatus,
			ToStatus:       row.ToStatus,
			Version:        row.Version,
			OldValue:       row.OldValue,
			NewValue:       row.NewValue,
			CreatedAt:      row.CreatedAt,
		})
	}
	return result, nil
}

// WithTx runs fn inside a multi-document transaction. The session context
// handed to fn carries the transaction; s itself is the tx store.
func (s *MongoStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s)
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// Drop removes both collections. Intended for integration tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	if err := s.docs.Drop(ctx); err != nil {
		return err
	}
	return s.audit.Drop(ctx)
}

func toBSON(body json.RawMessage) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(body, false, &doc); err != nil {
		return nil, fmt.Errorf("convert body to bson: %w", err)
	}
	return doc, nil
}

func (d mongoDocument) toDocument() (*repository.Document, error) {
	body, err := bson.MarshalExtJSON(d.Body, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert body to json: %w", err)
	}
	return &repository.Document{
		Kind:           domain.EntityKind(d.Kind),
		ID:             d.EntityID,
		OrganizationID: d.OrganizationID,
		Status:         d.Status,
		Version:        d.Version,
		Body:           body,
		CreatedAt:      d.CreatedAt.UTC(),
		UpdatedAt:      d.UpdatedAt.UTC(),
	}, nil
}
