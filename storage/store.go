package storage

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"channelSummarize/core"
)

// SummaryStore indexes finished summary bundles for similarity search.
// It is derived data: failures here never affect the ledger or the bundle
// files.
type SummaryStore interface {
	Upsert(vt core.VideoTranscript, bundle core.SummaryBundle) int
	Search(query string, topK int) []SummaryHit
}

// SummaryHit is one search result with its chunk time range.
type SummaryHit struct {
	VideoID string  `json:"video_id"`
	ChunkID int     `json:"chunk_id"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Summary string  `json:"summary"`
	Score   float64 `json:"score"`
}

// StoreOptions selects and configures a backend. Backend is "pgvector",
// "milvus", or anything else for the in-memory fallback.
type StoreOptions struct {
	Backend        string
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	PostgresURL    string
}

// NewSummaryStore builds the named backend, falling back to the in-memory
// store when a backend cannot be reached.
func NewSummaryStore(opts StoreOptions) SummaryStore {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "milvus":
		s, err := newMilvusSummaryStore(opts)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize Milvus store (%v), falling back to memory store\n", err)
			return newMemorySummaryStore()
		}
		return s
	case "pgvector":
		s, err := newPgSummaryStore(opts)
		if err != nil {
			fmt.Printf("Warning: Failed to initialize PgVector store (%v), falling back to memory store\n", err)
			return newMemorySummaryStore()
		}
		return s
	}
	return newMemorySummaryStore()
}

func newEmbeddingClient(opts StoreOptions) *openai.Client {
	clientConfig := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		clientConfig.BaseURL = opts.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

func embed(cli *openai.Client, model, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	}
	resp, err := cli.CreateEmbeddings(context.Background(), req)
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %v", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}

// chunkTimes maps chunk IDs to their time range for hit annotation.
func chunkTimes(vt core.VideoTranscript) map[int][2]float64 {
	times := make(map[int][2]float64, len(vt.Chunks))
	for _, c := range vt.Chunks {
		times[c.ChunkID] = [2]float64{c.StartTime, c.EndTime}
	}
	return times
}

// ---------------- Memory implementation (kept for fallback) ----------------

type memoryDoc struct {
	hit   SummaryHit
	embed map[string]float64 // term -> weight
}

type MemorySummaryStore struct {
	mu   sync.RWMutex
	docs []memoryDoc
}

func newMemorySummaryStore() *MemorySummaryStore {
	return &MemorySummaryStore{}
}

func (s *MemorySummaryStore) Upsert(vt core.VideoTranscript, bundle core.SummaryBundle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := chunkTimes(vt)
	count := 0
	for _, rec := range bundle.Summaries {
		span := times[rec.ChunkID]
		s.docs = append(s.docs, memoryDoc{
			hit: SummaryHit{
				VideoID: bundle.VideoID,
				ChunkID: rec.ChunkID,
				Start:   span[0],
				End:     span[1],
				Summary: rec.Summary,
			},
			embed: termVector(rec.Summary),
		})
		count++
	}
	return count
}

func (s *MemorySummaryStore) Search(query string, topK int) []SummaryHit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qv := termVector(query)
	type scored struct {
		i     int
		score float64
	}
	scores := make([]scored, 0, len(s.docs))
	for i, d := range s.docs {
		scores = append(scores, scored{i, cosine(qv, d.embed)})
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK <= 0 || topK > len(scores) {
		topK = len(scores)
		if topK > 5 {
			topK = 5
		}
	}
	hits := make([]SummaryHit, 0, topK)
	for _, sc := range scores[:topK] {
		hit := s.docs[sc.i].hit
		hit.Score = sc.score
		hits = append(hits, hit)
	}
	return hits
}

func termVector(text string) map[string]float64 {
	vec := map[string]float64{}
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		vec[tok]++
	}
	return vec
}

func cosine(a, b map[string]float64) float64 {
	var dot, na, nb float64
	for k, av := range a {
		na += av * av
		if bv, ok := b[k]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		nb += bv * bv
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// ---------------- PgVector implementation ----------------

type PgSummaryStore struct {
	conn *pgx.Conn
	oa   *openai.Client
	opts StoreOptions
}

func newPgSummaryStore(opts StoreOptions) (*PgSummaryStore, error) {
	dbURL := opts.PostgresURL
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("postgres URL not configured")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgSummaryStore{conn: conn, oa: newEmbeddingClient(opts), opts: opts}
	if err := s.ensureTable(); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgSummaryStore) ensureTable() error {
	ctx := context.Background()

	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS chunk_summaries (
			id SERIAL PRIMARY KEY,
			video_id VARCHAR(255) NOT NULL,
			chunk_id INT NOT NULL,
			start_time FLOAT NOT NULL,
			end_time FLOAT NOT NULL,
			summary TEXT NOT NULL,
			embedding vector(1536),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(video_id, chunk_id)
		);
	`
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create chunk_summaries table: %w", err)
	}
	return nil
}

func (s *PgSummaryStore) Upsert(vt core.VideoTranscript, bundle core.SummaryBundle) int {
	ctx := context.Background()
	times := chunkTimes(vt)
	successCount := 0

	for _, rec := range bundle.Summaries {
		embedding, err := embed(s.oa, s.opts.EmbeddingModel, strings.ToLower(rec.Summary))
		if err != nil {
			continue
		}
		span := times[rec.ChunkID]
		vec := pgvector.NewVector(embedding)

		_, err = s.conn.Exec(ctx, `
			INSERT INTO chunk_summaries (video_id, chunk_id, start_time, end_time, summary, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (video_id, chunk_id)
			DO UPDATE SET
				start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				summary = EXCLUDED.summary,
				embedding = EXCLUDED.embedding
		`, bundle.VideoID, rec.ChunkID, span[0], span[1], rec.Summary, vec)
		if err != nil {
			continue
		}
		successCount++
	}
	return successCount
}

func (s *PgSummaryStore) Search(query string, topK int) []SummaryHit {
	if topK <= 0 {
		topK = 5
	}
	queryEmbedding, err := embed(s.oa, s.opts.EmbeddingModel, strings.ToLower(query))
	if err != nil {
		return nil
	}
	vec := pgvector.NewVector(queryEmbedding)
	ctx := context.Background()

	rows, err := s.conn.Query(ctx, `
		SELECT video_id, chunk_id, start_time, end_time, summary,
		       1 - (embedding <=> $1) as similarity
		FROM chunk_summaries
		ORDER BY embedding <=> $1
		LIMIT $2
	`, vec, topK)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var hits []SummaryHit
	for rows.Next() {
		var hit SummaryHit
		if err := rows.Scan(&hit.VideoID, &hit.ChunkID, &hit.Start, &hit.End, &hit.Summary, &hit.Score); err != nil {
			continue
		}
		hits = append(hits, hit)
	}
	return hits
}

// ---------------- Milvus implementation ----------------

type MilvusSummaryStore struct {
	mc   client.Client
	coll string
	dim  int
	oa   *openai.Client
	opts StoreOptions
}

func newMilvusSummaryStore(opts StoreOptions) (*MilvusSummaryStore, error) {
	addr := os.Getenv("MILVUS_ADDR")
	if addr == "" {
		addr = "localhost:19530"
	}
	coll := os.Getenv("MILVUS_COLLECTION")
	if coll == "" {
		coll = "chunk_summaries"
	}

	mc, err := client.NewClient(context.Background(), client.Config{
		Address:  addr,
		Username: os.Getenv("MILVUS_USERNAME"),
		Password: os.Getenv("MILVUS_PASSWORD"),
		APIKey:   os.Getenv("MILVUS_API_KEY"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusSummaryStore{mc: mc, coll: coll, dim: 1536, oa: newEmbeddingClient(opts), opts: opts}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusSummaryStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(128))
		schema.WithField(entity.NewField().WithName("chunk_id").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("start").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("end").WithDataType(entity.FieldTypeDouble))
		schema.WithField(entity.NewField().WithName("summary").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusSummaryStore) Upsert(vt core.VideoTranscript, bundle core.SummaryBundle) int {
	if len(bundle.Summaries) == 0 {
		return 0
	}
	times := chunkTimes(vt)

	videoIDs := make([]string, 0, len(bundle.Summaries))
	chunkIDs := make([]int64, 0, len(bundle.Summaries))
	starts := make([]float64, 0, len(bundle.Summaries))
	ends := make([]float64, 0, len(bundle.Summaries))
	summaries := make([]string, 0, len(bundle.Summaries))
	vectors := make([][]float32, 0, len(bundle.Summaries))

	for _, rec := range bundle.Summaries {
		v, err := embed(s.oa, s.opts.EmbeddingModel, strings.ToLower(rec.Summary))
		if err != nil {
			continue
		}
		span := times[rec.ChunkID]
		videoIDs = append(videoIDs, bundle.VideoID)
		chunkIDs = append(chunkIDs, int64(rec.ChunkID))
		starts = append(starts, span[0])
		ends = append(ends, span[1])
		summaries = append(summaries, rec.Summary)
		vectors = append(vectors, v)
	}
	if len(vectors) == 0 {
		return 0
	}

	ctx := context.Background()
	_, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnInt64("chunk_id", chunkIDs),
		entity.NewColumnDouble("start", starts),
		entity.NewColumnDouble("end", ends),
		entity.NewColumnVarChar("summary", summaries),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0
	}
	return len(vectors)
}

func (s *MilvusSummaryStore) Search(query string, topK int) []SummaryHit {
	v, err := embed(s.oa, s.opts.EmbeddingModel, strings.ToLower(query))
	if err != nil {
		return nil
	}
	if topK <= 0 {
		topK = 5
	}
	ctx := context.Background()
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, "",
		[]string{"video_id", "chunk_id", "start", "end", "summary"},
		[]entity.Vector{entity.FloatVector(v)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil
	}

	var hits []SummaryHit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			var hit SummaryHit
			if c, ok := cols["video_id"].(*entity.ColumnVarChar); ok {
				data := c.Data()
				if i < len(data) {
					hit.VideoID = data[i]
				}
			}
			if c, ok := cols["chunk_id"].(*entity.ColumnInt64); ok {
				data := c.Data()
				if i < len(data) {
					hit.ChunkID = int(data[i])
				}
			}
			if c, ok := cols["start"].(*entity.ColumnDouble); ok {
				data := c.Data()
				if i < len(data) {
					hit.Start = data[i]
				}
			}
			if c, ok := cols["end"].(*entity.ColumnDouble); ok {
				data := c.Data()
				if i < len(data) {
					hit.End = data[i]
				}
			}
			if c, ok := cols["summary"].(*entity.ColumnVarChar); ok {
				data := c.Data()
				if i < len(data) {
					hit.Summary = data[i]
				}
			}
			if i < len(r.Scores) {
				hit.Score = float64(r.Scores[i])
			}
			hits = append(hits, hit)
		}
	}
	return hits
}
