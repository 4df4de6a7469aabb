package execarchive

import (
	"context"
	"fmt"
	"log"
	"time"

	"go_trading_automation/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	databaseName        = "automation"
	executionCollection = "task_executions"
	connectTimeout      = 30 * time.Second
	opTimeout           = 10 * time.Second
)

// ExecutionDocument is the archived form of a finalized task execution
type ExecutionDocument struct {
	ExecutionID   uint       `bson:"execution_id"`
	TenantID      uint       `bson:"tenant_id"`
	TaskName      string     `bson:"task_name"`
	ExecutionType string     `bson:"execution_type"`
	Status        string     `bson:"status"`
	StartedAt     time.Time  `bson:"started_at"`
	CompletedAt   *time.Time `bson:"completed_at,omitempty"`
	DurationMs    int64      `bson:"duration_ms"`
	Result        string     `bson:"result,omitempty"`
	ErrorMessage  string     `bson:"error_message,omitempty"`
	ArchivedAt    time.Time  `bson:"archived_at"`
}

// Archive mirrors finalized execution records into MongoDB for long-term
// retention. Optional: without a URI every operation is a silent no-op.
type Archive struct {
	client  *mongo.Client
	enabled bool
}

// New connects to MongoDB when uri is set; otherwise returns a disabled
// archive
func New(uri string) (*Archive, error) {
	if uri == "" {
		log.Println("MONGODB_URI not set, execution archive disabled")
		return &Archive{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Execution archive connected to MongoDB")
	return &Archive{client: client, enabled: true}, nil
}

// Enabled reports whether the archive is connected
func (a *Archive) Enabled() bool {
	return a.enabled
}

// ArchiveExecution stores a finalized execution record. Best effort: failures
// are logged and never surfaced to the execution path.
func (a *Archive) ArchiveExecution(rec *models.TaskExecution) {
	if !a.enabled {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	doc := ExecutionDocument{
		ExecutionID:   rec.ID,
		TenantID:      rec.TenantID,
		TaskName:      rec.TaskName,
		ExecutionType: rec.ExecutionType,
		Status:        rec.Status,
		StartedAt:     rec.StartedAt,
		CompletedAt:   rec.CompletedAt,
		DurationMs:    rec.DurationMs,
		Result:        rec.Result,
		ErrorMessage:  rec.ErrorMessage,
		ArchivedAt:    time.Now(),
	}

	coll := a.client.Database(databaseName).Collection(executionCollection)
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		log.Printf("Error archiving execution %d: %v", rec.ID, err)
	}
}

// ListArchived returns archived executions for a tenant, newest first
func (a *Archive) ListArchived(tenantID uint, limit int) ([]ExecutionDocument, error) {
	if !a.enabled {
		return nil, fmt.Errorf("execution archive is not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	coll := a.client.Database(databaseName).Collection(executionCollection)
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := coll.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived executions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []ExecutionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode archived executions: %w", err)
	}
	return docs, nil
}

// Close disconnects from MongoDB
func (a *Archive) Close() error {
	if !a.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return a.client.Disconnect(ctx)
}
