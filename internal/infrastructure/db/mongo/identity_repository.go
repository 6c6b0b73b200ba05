package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

const (
	identitiesCollection = "identities"
	countersCollection   = "counters"
)

// IdentityRepository implements ports.IdentityRepository using MongoDB.
// Case-insensitive uniqueness is enforced by unique indexes on lower-cased
// shadow fields, so concurrent creates cannot both succeed.
type IdentityRepository struct {
	db           *mongo.Database
	coll         *mongo.Collection
	counters     *mongo.Collection
	samples      *SampleRepository
	transactions bool
}

// NewIdentityRepository builds the repository. When transactions is true the
// cascading delete runs inside a multi-document transaction, which requires a
// replica set.
func NewIdentityRepository(db *mongo.Database, samples *SampleRepository, transactions bool) *IdentityRepository {
	return &IdentityRepository{
		db:           db,
		coll:         db.Collection(identitiesCollection),
		counters:     db.Collection(countersCollection),
		samples:      samples,
		transactions: transactions,
	}
}

type mongoIdentity struct {
	ID            int64     `bson:"_id"`
	Name          string    `bson:"name"`
	Username      string    `bson:"username"`
	UsernameLower string    `bson:"username_lower"`
	Email         string    `bson:"email"`
	EmailLower    string    `bson:"email_lower"`
	PasswordHash  string    `bson:"password_hash,omitempty"`
	FederatedID   string    `bson:"federated_id,omitempty"`
	Roles         []string  `bson:"roles"`
	Demo          bool      `bson:"is_demo"`
	Provisioning  bool      `bson:"provisioning,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

func toMongoIdentity(i *domain.Identity) mongoIdentity {
	return mongoIdentity{
		ID:            i.ID,
		Name:          i.Name,
		Username:      i.Username,
		UsernameLower: domain.Fold(i.Username),
		Email:         i.Email,
		EmailLower:    domain.Fold(i.Email),
		PasswordHash:  i.PasswordHash,
		FederatedID:   i.FederatedID,
		Roles:         i.Roles,
		Demo:          i.Demo,
		Provisioning:  i.Provisioning,
		CreatedAt:     i.CreatedAt.UTC(),
		UpdatedAt:     i.UpdatedAt.UTC(),
	}
}

func (m mongoIdentity) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:           m.ID,
		Name:         m.Name,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FederatedID:  m.FederatedID,
		Roles:        m.Roles,
		Demo:         m.Demo,
		Provisioning: m.Provisioning,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func (r *IdentityRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, bson.M{"username_lower": domain.Fold(username)})
}

func (r *IdentityRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, bson.M{"email_lower": domain.Fold(email)})
}

func (r *IdentityRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count identities: %w", err)
	}
	return n > 0, nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, id int64) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *IdentityRepository) FindByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"username_lower": domain.Fold(username)})
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.findOne(ctx, bson.M{"email_lower": domain.Fold(email)})
}

func (r *IdentityRepository) FindByUsernameOrEmail(ctx context.Context, login string) (*domain.Identity, error) {
	identity, err := r.FindByUsername(ctx, login)
	if errors.Is(err, domain.ErrIdentityNotFound) {
		return r.FindByEmail(ctx, login)
	}
	return identity, err
}

func (r *IdentityRepository) FindBySubjectID(ctx context.Context, subjectID string) (*domain.Identity, error) {
	if subjectID == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return r.findOne(ctx, bson.M{"federated_id": subjectID})
}

func (r *IdentityRepository) findOne(ctx context.Context, filter bson.M) (*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mi mongoIdentity
	if err := r.coll.FindOne(ctx, filter).Decode(&mi); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return mi.toDomain(), nil
}

// Create allocates the next numeric id and inserts the identity. A unique
// index violation is reported as domain.ErrDuplicateIdentity.
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}

	doc := toMongoIdentity(identity)
	doc.ID = id
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *IdentityRepository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": identitiesCollection},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocate identity id: %w", err)
	}
	return counter.Seq, nil
}

func (r *IdentityRepository) Update(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := toMongoIdentity(identity)
	set := bson.M{
		"name":           doc.Name,
		"username":       doc.Username,
		"username_lower": doc.UsernameLower,
		"email":          doc.Email,
		"email_lower":    doc.EmailLower,
		"roles":          doc.Roles,
		"updated_at":     doc.UpdatedAt,
	}
	if doc.PasswordHash != "" {
		set["password_hash"] = doc.PasswordHash
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": identity.ID}, bson.M{"$set": set})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, domain.ErrIdentityNotFound
	}
	return r.FindByID(ctx, identity.ID)
}

func (r *IdentityRepository) Activate(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{"provisioning": ""}})
	if err != nil {
		return fmt.Errorf("activate identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// DeleteCascade removes the identity's records, indicators and the identity
// itself. Owned data goes first so that a partial failure without
// transactions leaves the identity in place for the next sweep to retry.
func (r *IdentityRepository) DeleteCascade(ctx context.Context, id int64) error {
	if !r.transactions {
		found, err := r.deleteCascade(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrIdentityNotFound
		}
		return nil
	}

	sess, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	found, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.deleteCascade(sc, id)
	})
	if err != nil {
		return fmt.Errorf("delete cascade: %w", err)
	}
	if ok, _ := found.(bool); !ok {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) deleteCascade(ctx context.Context, id int64) (bool, error) {
	if err := r.samples.DeleteByOwner(ctx, id); err != nil {
		return false, err
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete identity: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (r *IdentityRepository) ListByDemoFlag(ctx context.Context, demo bool) ([]*domain.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.coll.Find(ctx, bson.M{"is_demo": demo})
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoIdentity
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode identities: %w", err)
	}

	out := make([]*domain.Identity, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes on identities.
func (r *IdentityRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "username_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email_lower", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "federated_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "is_demo", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
