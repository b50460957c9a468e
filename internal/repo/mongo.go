package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cmd-f-hackthon/MapMe/internal/domain"
)

// EntriesCollection is the Mongo collection holding journal entries.
const EntriesCollection = "entries"

// mongoEntryRepo is the MongoDB implementation of EntryRepo.
// Anchors and path points are stored as GeoJSON points so the anchor can
// carry a 2dsphere index.
type mongoEntryRepo struct {
	coll *mongo.Collection

	mu          sync.Mutex
	lastCreated time.Time
}

// NewMongoEntryRepo constructs an EntryRepo backed by the given collection.
func NewMongoEntryRepo(coll *mongo.Collection) EntryRepo {
	return &mongoEntryRepo{coll: coll}
}

// EnsureMongoIndexes creates the geo and owner/time indexes. It is idempotent.
func EnsureMongoIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "owner.id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("repo.EnsureMongoIndexes: %w", err)
	}
	return nil
}

type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"` // [longitude, latitude]
}

func newGeoPoint(c domain.Coordinate) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{c.Longitude, c.Latitude}}
}

func (g geoPoint) coordinate() domain.Coordinate {
	if len(g.Coordinates) < 2 {
		return domain.Coordinate{}
	}
	return domain.Coordinate{Longitude: g.Coordinates[0], Latitude: g.Coordinates[1]}
}

type mongoPathPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
	Timestamp   time.Time `bson:"timestamp"`
	Accuracy    *float64  `bson:"accuracy,omitempty"`
}

type mongoOwner struct {
	ID    string `bson:"id"`
	Name  string `bson:"name"`
	Email string `bson:"email,omitempty"`
}

type mongoNearbyPlace struct {
	PlaceID  string    `bson:"place_id"`
	Name     string    `bson:"name"`
	Vicinity string    `bson:"vicinity,omitempty"`
	Types    []string  `bson:"types,omitempty"`
	Location *geoPoint `bson:"location,omitempty"`
	Rating   *float64  `bson:"rating,omitempty"`
}

type mongoDetails struct {
	Address      *string            `bson:"address,omitempty"`
	PlaceID      *string            `bson:"place_id,omitempty"`
	LocationType *string            `bson:"location_type,omitempty"`
	Types        []string           `bson:"types,omitempty"`
	NearbyPlaces []mongoNearbyPlace `bson:"nearby_places,omitempty"`
}

type mongoPhoto struct {
	URL      string `bson:"url"`
	PublicID string `bson:"public_id,omitempty"`
}

type mongoEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Title     string             `bson:"title"`
	Content   string             `bson:"content"`
	Owner     mongoOwner         `bson:"owner"`
	Location  geoPoint           `bson:"location"`
	Details   mongoDetails       `bson:"details"`
	Path      []mongoPathPoint   `bson:"path"`
	Notes     string             `bson:"notes,omitempty"`
	Emoji     string             `bson:"emoji,omitempty"`
	Photo     *mongoPhoto        `bson:"photo,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

// Create inserts a new document. Timestamps are truncated to milliseconds,
// the precision Mongo stores, so the returned entry equals a later read.
func (r *mongoEntryRepo) Create(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	now := r.nextCreatedAt()

	doc := toMongoEntry(entry)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return domain.Entry{}, mongoErr("repo.mongoEntryRepo.Create", err)
	}
	return doc.toDomain(), nil
}

// nextCreatedAt keeps creation times strictly increasing within the process
// even when two inserts land in the same millisecond.
func (r *mongoEntryRepo) nextCreatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(r.lastCreated) {
		now = r.lastCreated.Add(time.Millisecond)
	}
	r.lastCreated = now
	return now
}

// GetByID retrieves an entry by its ObjectID hex string.
func (r *mongoEntryRepo) GetByID(ctx context.Context, id string) (domain.Entry, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.mongoEntryRepo.GetByID: %w", domain.ErrNotFound)
	}

	var doc mongoEntry
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return domain.Entry{}, mongoErr("repo.mongoEntryRepo.GetByID", err)
	}
	return doc.toDomain(), nil
}

// List returns all entries, most recent first.
func (r *mongoEntryRepo) List(ctx context.Context) ([]domain.Entry, error) {
	return r.find(ctx, "repo.mongoEntryRepo.List", bson.M{})
}

// ListByOwner returns the entries of one owner, most recent first.
func (r *mongoEntryRepo) ListByOwner(ctx context.Context, ownerID string) ([]domain.Entry, error) {
	return r.find(ctx, "repo.mongoEntryRepo.ListByOwner", bson.M{"owner.id": ownerID})
}

func (r *mongoEntryRepo) find(ctx context.Context, op string, filter bson.M) ([]domain.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr(op, err)
	}
	defer cur.Close(ctx)

	var entries []domain.Entry
	for cur.Next(ctx) {
		var doc mongoEntry
		if err := cur.Decode(&doc); err != nil {
			return nil, mongoErr(op+": decode", err)
		}
		entries = append(entries, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, mongoErr(op+": cursor", err)
	}
	return entries, nil
}

// AppendPath pushes points onto the stored path in one update.
func (r *mongoEntryRepo) AppendPath(ctx context.Context, id string, points []domain.PathPoint) (domain.Entry, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.mongoEntryRepo.AppendPath: %w", domain.ErrNotFound)
	}

	update := bson.M{
		"$push": bson.M{"path": bson.M{"$each": toMongoPath(points)}},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}
	return r.findOneAndUpdate(ctx, "repo.mongoEntryRepo.AppendPath", oid, update)
}

// Update overwrites title, content, notes and emoji.
func (r *mongoEntryRepo) Update(ctx context.Context, entry domain.Entry) (domain.Entry, error) {
	oid, err := primitive.ObjectIDFromHex(entry.ID)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("repo.mongoEntryRepo.Update: %w", domain.ErrNotFound)
	}

	update := bson.M{"$set": bson.M{
		"title":      entry.Title,
		"content":    entry.Content,
		"notes":      entry.Notes,
		"emoji":      entry.Emoji,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	return r.findOneAndUpdate(ctx, "repo.mongoEntryRepo.Update", oid, update)
}

func (r *mongoEntryRepo) findOneAndUpdate(ctx context.Context, op string, oid primitive.ObjectID, update bson.M) (domain.Entry, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoEntry
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		return domain.Entry{}, mongoErr(op, err)
	}
	return doc.toDomain(), nil
}

// Delete removes an entry by ObjectID.
func (r *mongoEntryRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("repo.mongoEntryRepo.Delete: %w", domain.ErrNotFound)
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return mongoErr("repo.mongoEntryRepo.Delete", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("repo.mongoEntryRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// mongoErr maps ErrNoDocuments to ErrNotFound and tags the rest as ErrStorage.
func mongoErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}

// --- mapping ----------------------------------------------------------------

func toMongoEntry(e domain.Entry) mongoEntry {
	doc := mongoEntry{
		Title:    e.Title,
		Content:  e.Content,
		Owner:    mongoOwner(e.Owner),
		Location: newGeoPoint(e.Anchor.Coordinate),
		Details: mongoDetails{
			Address:      e.Anchor.Details.Address,
			PlaceID:      e.Anchor.Details.PlaceID,
			LocationType: e.Anchor.Details.LocationType,
			Types:        e.Anchor.Details.Types,
		},
		Path:  toMongoPath(e.Path),
		Notes: e.Notes,
		Emoji: e.Emoji,
	}
	for _, p := range e.Anchor.Details.NearbyPlaces {
		np := mongoNearbyPlace{
			PlaceID:  p.PlaceID,
			Name:     p.Name,
			Vicinity: p.Vicinity,
			Types:    p.Types,
			Rating:   p.Rating,
		}
		if p.Location != nil {
			g := newGeoPoint(*p.Location)
			np.Location = &g
		}
		doc.Details.NearbyPlaces = append(doc.Details.NearbyPlaces, np)
	}
	if e.Photo != nil {
		doc.Photo = &mongoPhoto{URL: e.Photo.URL, PublicID: e.Photo.PublicID}
	}
	return doc
}

func toMongoPath(points []domain.PathPoint) []mongoPathPoint {
	out := make([]mongoPathPoint, len(points))
	for i, p := range points {
		g := newGeoPoint(p.Coordinate)
		out[i] = mongoPathPoint{
			Type:        g.Type,
			Coordinates: g.Coordinates,
			Timestamp:   p.Timestamp.UTC().Truncate(time.Millisecond),
			Accuracy:    p.Accuracy,
		}
	}
	return out
}

func (doc mongoEntry) toDomain() domain.Entry {
	e := domain.Entry{
		ID:      doc.ID.Hex(),
		Title:   doc.Title,
		Content: doc.Content,
		Owner:   domain.Owner(doc.Owner),
		Anchor: domain.Anchor{
			Coordinate: doc.Location.coordinate(),
			Details: domain.LocationDetails{
				Address:      doc.Details.Address,
				PlaceID:      doc.Details.PlaceID,
				LocationType: doc.Details.LocationType,
				Types:        doc.Details.Types,
			},
		},
		Path:      make([]domain.PathPoint, len(doc.Path)),
		Notes:     doc.Notes,
		Emoji:     doc.Emoji,
		CreatedAt: doc.CreatedAt.UTC(),
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
	for i, p := range doc.Path {
		e.Path[i] = domain.PathPoint{
			Coordinate: geoPoint{Type: p.Type, Coordinates: p.Coordinates}.coordinate(),
			Timestamp:  p.Timestamp.UTC(),
			Accuracy:   p.Accuracy,
		}
	}
	for _, np := range doc.Details.NearbyPlaces {
		p := domain.NearbyPlace{
			PlaceID:  np.PlaceID,
			Name:     np.Name,
			Vicinity: np.Vicinity,
			Types:    np.Types,
			Rating:   np.Rating,
		}
		if np.Location != nil {
			c := np.Location.coordinate()
			p.Location = &c
		}
		e.Anchor.Details.NearbyPlaces = append(e.Anchor.Details.NearbyPlaces, p)
	}
	if doc.Photo != nil {
		e.Photo = &domain.Photo{URL: doc.Photo.URL, PublicID: doc.Photo.PublicID}
	}
	return e
}
