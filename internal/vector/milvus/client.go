package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/pkg/logger"
)

// EntryMetadata is the closed metadata record attached to every memory
// entry. Entries are immutable once written and only ever found through
// similarity queries, never by key.
type EntryMetadata struct {
	EmployeeID string
	LoggedAt   time.Time
	RawText    string
	EntryType  string
}

// EntryTypeAttendanceLog is the only entry type this subsystem writes.
const EntryTypeAttendanceLog = "attendance_log"

// Match is one similarity hit, score in the store's bounded similarity
// scale where higher means more similar.
type Match struct {
	EntryID  string
	Score    float32
	Metadata EntryMetadata
}

type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
		zap.Int("dim", vectorDim),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Per-employee semantic memory of attendance messages",
		Fields: []*entity.Field{
			{
				Name:       "entry_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "employee_id",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "logged_at",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "raw_text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "entry_type",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
		},
	}

	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Query returns the topK nearest entries for the vector, highest score
// first. Every query is scoped to a single employee; an unfiltered query
// would let one employee's excuse history match another's.
func (m *Client) Query(ctx context.Context, vector []float32, employeeID string, topK int) ([]Match, error) {
	if employeeID == "" {
		return nil, fmt.Errorf("employee filter is required")
	}

	expr := fmt.Sprintf(`employee_id == "%s"`, employeeID)

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"entry_id", "employee_id", "logged_at", "raw_text", "entry_type"},
		[]entity.Vector{entity.FloatVector(vector)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	matches := make([]Match, 0)
	for _, sr := range searchResult {
		entryIDCol := sr.Fields.GetColumn("entry_id")
		employeeIDCol := sr.Fields.GetColumn("employee_id")
		loggedAtCol := sr.Fields.GetColumn("logged_at")
		rawTextCol := sr.Fields.GetColumn("raw_text")
		entryTypeCol := sr.Fields.GetColumn("entry_type")

		for i := 0; i < sr.ResultCount; i++ {
			entryID, _ := entryIDCol.Get(i)
			empID, _ := employeeIDCol.Get(i)
			loggedAt, _ := loggedAtCol.Get(i)
			rawText, _ := rawTextCol.Get(i)
			entryType, _ := entryTypeCol.Get(i)

			ts, _ := time.Parse(time.RFC3339, loggedAt.(string))

			matches = append(matches, Match{
				EntryID: entryID.(string),
				Score:   sr.Scores[i],
				Metadata: EntryMetadata{
					EmployeeID: empID.(string),
					LoggedAt:   ts,
					RawText:    rawText.(string),
					EntryType:  entryType.(string),
				},
			})
		}
	}

	logger.Debug("Memory query completed",
		zap.String("employee_id", employeeID),
		zap.Int("topK", topK),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}

// Upsert writes a new memory entry and returns its store-assigned key.
// The key is never reused and never looked up again.
func (m *Client) Upsert(ctx context.Context, vector []float32, meta EntryMetadata) (string, error) {
	entryID := uuid.New().String()

	_, err := m.client.Insert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnVarChar("entry_id", []string{entryID}),
		entity.NewColumnFloatVector("embedding", m.vectorDim, [][]float32{vector}),
		entity.NewColumnVarChar("employee_id", []string{meta.EmployeeID}),
		entity.NewColumnVarChar("logged_at", []string{meta.LoggedAt.Format(time.RFC3339)}),
		entity.NewColumnVarChar("raw_text", []string{meta.RawText}),
		entity.NewColumnVarChar("entry_type", []string{meta.EntryType}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert memory entry: %w", err)
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return "", fmt.Errorf("failed to flush: %w", err)
	}

	logger.Debug("Memory entry upserted",
		zap.String("entry_id", entryID),
		zap.String("employee_id", meta.EmployeeID),
	)

	return entryID, nil
}
