package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload field names used in the Qdrant collection.
const (
	payloadChunkID     = "chunk_id"
	payloadText        = "text"
	payloadWorkspaceID = "workspace_id"
	payloadFileID      = "file_id"
	payloadFileName    = "file_name"
	payloadChunkIndex  = "chunk_index"
	payloadStorageKey  = "storage_key"
)

// QdrantConfig holds connection parameters for a Qdrant vector index.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex, ensuring the target collection
// exists (creating it if necessary), and returns a ready-to-use VectorIndex.
func NewQdrantIndex(ctx context.Context, cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}

	return idx, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// pointID maps a logical chunk id onto a deterministic UUID point id.
// Qdrant point ids must be UUIDs or unsigned integers; hashing the chunk id
// keeps upserts idempotent across re-ingestion of the same file.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("contextd:"+chunkID)).String())
}

// qdrantFilter converts a Filter into a Qdrant must-match conjunction.
// Returns nil for the zero filter so unfiltered queries stay unfiltered.
func qdrantFilter(f Filter) *qdrant.Filter {
	var must []*qdrant.Condition
	if f.WorkspaceID != 0 {
		must = append(must, qdrant.NewMatchInt(payloadWorkspaceID, f.WorkspaceID))
	}
	if f.FileID != 0 {
		must = append(must, qdrant.NewMatchInt(payloadFileID, f.FileID))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// Upsert inserts or overwrites a batch of chunks with their embeddings.
func (s *QdrantIndex) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", ErrEmptyBatch, len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(c.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadChunkID:     c.ID,
				payloadText:        c.Text,
				payloadWorkspaceID: c.Meta.WorkspaceID,
				payloadFileID:      c.Meta.FileID,
				payloadFileName:    c.Meta.FileName,
				payloadChunkIndex:  int64(c.Meta.ChunkIndex),
				payloadStorageKey:  c.Meta.StorageKey,
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Query performs a cosine similarity search restricted by the given filter.
func (s *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	limit := uint64(topK)
	scored, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         qdrantFilter(filter),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query failed: %w", err)
	}

	results := make([]Result, 0, len(scored))
	for _, r := range scored {
		res := Result{Score: r.Score}
		if p := r.Payload; p != nil {
			res.ID = p[payloadChunkID].GetStringValue()
			res.Text = p[payloadText].GetStringValue()
			res.Meta = Metadata{
				WorkspaceID: p[payloadWorkspaceID].GetIntegerValue(),
				FileID:      p[payloadFileID].GetIntegerValue(),
				FileName:    p[payloadFileName].GetStringValue(),
				ChunkIndex:  int(p[payloadChunkIndex].GetIntegerValue()),
				StorageKey:  p[payloadStorageKey].GetStringValue(),
			}
		}
		results = append(results, res)
	}

	return results, nil
}

// DeleteByFilter removes every chunk matching the filter and reports how many
// points were removed. Qdrant's delete API does not return a count, so the
// matching points are counted first; the two calls are not transactional,
// which is acceptable for the at-least-once pipeline this index serves.
func (s *QdrantIndex) DeleteByFilter(ctx context.Context, filter Filter) (int, error) {
	if filter.IsZero() {
		// A nil Qdrant filter matches every point; refuse to delete the
		// whole collection through this path.
		return 0, ErrEmptyFilter
	}
	qf := qdrantFilter(filter)

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Filter:         qf,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count before delete failed: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points:         qdrant.NewPointsSelectorFilter(qf),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: delete failed: %w", err)
	}

	return int(count), nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}
