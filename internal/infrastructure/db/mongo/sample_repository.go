package mongo

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/grafeo/grafeo-api/internal/core/domain"
)

const (
	collectionIndicators = "indicators"
	collectionRecords    = "records"

	sampleDays = 30
)

type sampleIndicator struct {
	name  string
	unit  string
	base  float64
	slope float64
}

// sampleIndicators is the bundle every demo identity starts with.
var sampleIndicators = []sampleIndicator{
	{name: "Weight", unit: "kg", base: 82, slope: -0.1},
	{name: "Running", unit: "km", base: 3, slope: 0.15},
	{name: "Reading", unit: "pages", base: 20, slope: 0.5},
}

// SampleRepository owns the indicators and records collections. It seeds
// demo data and removes everything an identity owns.
type SampleRepository struct {
	indicators *mongo.Collection
	records    *mongo.Collection
	now        func() time.Time
}

func NewSampleRepository(db *mongo.Database) *SampleRepository {
	return &SampleRepository{
		indicators: db.Collection(collectionIndicators),
		records:    db.Collection(collectionRecords),
		now:        time.Now,
	}
}

// Seed inserts the sample indicators and a month of daily records for ownerID.
func (r *SampleRepository) Seed(ctx context.Context, ownerID int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	indicators := make([]any, 0, len(sampleIndicators))
	records := make([]any, 0, len(sampleIndicators)*sampleDays)
	for _, s := range sampleIndicators {
		ind := domain.Indicator{
			ID:        primitive.NewObjectID().Hex(),
			OwnerID:   ownerID,
			Name:      s.name,
			Unit:      s.unit,
			CreatedAt: now,
		}
		indicators = append(indicators, ind)

		for day := 0; day < sampleDays; day++ {
			records = append(records, domain.Record{
				ID:          primitive.NewObjectID().Hex(),
				IndicatorID: ind.ID,
				OwnerID:     ownerID,
				Value:       sampleValue(s, day),
				Date:        today.AddDate(0, 0, day-sampleDays+1),
			})
		}
	}

	if _, err := r.indicators.InsertMany(ctx, indicators); err != nil {
		return fmt.Errorf("seed indicators: %w", err)
	}
	if _, err := r.records.InsertMany(ctx, records); err != nil {
		return fmt.Errorf("seed records: %w", err)
	}
	return nil
}

// sampleValue draws a gently trending, wobbling series so charts look alive.
func sampleValue(s sampleIndicator, day int) float64 {
	v := s.base + s.slope*float64(day) + math.Sin(float64(day)/3)*s.base*0.03
	return math.Round(v*10) / 10
}

// DeleteByOwner removes records before indicators so an interrupted delete
// never leaves records pointing at a missing indicator.
func (r *SampleRepository) DeleteByOwner(ctx context.Context, ownerID int64) error {
	filter := bson.M{"created_by": ownerID}
	if _, err := r.records.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	if _, err := r.indicators.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("delete indicators: %w", err)
	}
	return nil
}

// EnsureIndexes creates owner lookup indexes used by the cascade delete.
func (r *SampleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	owner := mongo.IndexModel{Keys: bson.D{{Key: "created_by", Value: 1}}}
	if _, err := r.indicators.Indexes().CreateOne(ctx, owner); err != nil {
		return err
	}
	_, err := r.records.Indexes().CreateMany(ctx, []mongo.IndexModel{
		owner,
		{Keys: bson.D{{Key: "indicator_id", Value: 1}, {Key: "date", Value: 1}}},
	})
	return err
}
