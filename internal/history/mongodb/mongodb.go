package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spectorhq/spector/internal/history"
	"github.com/spectorhq/spector/internal/models"
)

const collReports = "reports"

// MongoDB implements the history Store interface for MongoDB
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	config   *history.Config
}

// New creates a new MongoDB history store
func New(config *history.Config) (*MongoDB, error) {
	return &MongoDB{
		config: config,
	}, nil
}

// Connect establishes connection to MongoDB
func (m *MongoDB) Connect(ctx context.Context) error {
	clientOptions := options.Client().ApplyURI(m.config.URI)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	m.client = client
	m.database = client.Database(m.config.Database)

	if err := m.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}

// Ping checks the database connection
func (m *MongoDB) Ping(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not connected to database")
	}
	return m.client.Ping(ctx, nil)
}

// createIndexes creates necessary indexes for report queries
func (m *MongoDB) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "target", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "type", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "created_at", Value: -1},
			},
		},
	}

	_, err := m.database.Collection(collReports).Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create report indexes: %w", err)
	}
	return nil
}

// SaveReport stores a completed report
func (m *MongoDB) SaveReport(ctx context.Context, report *models.Report) error {
	_, err := m.database.Collection(collReports).InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// GetReport retrieves a report by id
func (m *MongoDB) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := m.database.Collection(collReports).FindOne(ctx, bson.M{"_id": id}).Decode(&report)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("report not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

// ListReports retrieves reports matching the filter, newest first
func (m *MongoDB) ListReports(ctx context.Context, filter history.ReportFilter) ([]*models.Report, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.Target != "" {
		query["target"] = filter.Target
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		created := bson.M{}
		if filter.StartTime != nil {
			created["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			created["$lte"] = *filter.EndTime
		}
		query["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := m.database.Collection(collReports).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes a report by id
func (m *MongoDB) DeleteReport(ctx context.Context, id string) error {
	result, err := m.database.Collection(collReports).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("report not found: %s", id)
	}
	return nil
}

// CountReports returns the total number of stored reports
func (m *MongoDB) CountReports(ctx context.Context) (int64, error) {
	count, err := m.database.Collection(collReports).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}
