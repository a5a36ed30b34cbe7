package index

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/venturist-ai/venturist/config"
)

// Point is one embedded record headed for the vector index.
type Point struct {
	ID        string
	Embedding []float32
	Payload   map[string]any
}

// Match is one nearest-neighbour result.
type Match struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Client wraps the Qdrant gRPC client for idea and code-chunk similarity.
type Client struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *log.Logger
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL. Accepts
// "https://host:6333", "http://host:6333", or "host:6334". A REST port
// (6333) is mapped to the gRPC port (6334).
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("index: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("index: invalid port in qdrant URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// New connects to Qdrant over gRPC.
func New(cfg config.IndexConfig, logger *log.Logger) (*Client, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("index: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &Client{
		client:     client,
		collection: cfg.Collection,
		dims:       uint64(cfg.Dims),
		logger:     logger,
	}, nil
}

// EnsureCollection creates the collection if it doesn't already exist.
func (c *Client) EnsureCollection(ctx context.Context) error {
	exists, err := c.client.CollectionExists(ctx, c.collection)
	if err != nil {
		return fmt.Errorf("index: check collection exists: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("index: create collection %s: %w", c.collection, err)
	}
	c.logger.Printf("[INDEX] created qdrant collection %s (dims=%d)", c.collection, c.dims)
	return nil
}

// Upsert inserts or updates points.
func (c *Client) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	qpts := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		if len(p.Embedding) != int(c.dims) {
			return fmt.Errorf("index: point %s has %d dims, collection expects %d", p.ID, len(p.Embedding), c.dims)
		}
		qpts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(p.ID),
			Vectors: qdrant.NewVectorsDense(p.Embedding),
			Payload: qdrant.NewValueMap(p.Payload),
		}
	}
	_, err := c.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         qpts,
	})
	if err != nil {
		return fmt.Errorf("index: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search returns the ids of the nearest points to the embedding.
func (c *Client) Search(ctx context.Context, embedding []float32, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}
	lim := uint64(limit)
	scored, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}

	out := make([]Match, 0, len(scored))
	for _, s := range scored {
		m := Match{Score: s.Score}
		if id := s.Id.GetUuid(); id != "" {
			m.ID = id
		}
		if len(s.Payload) > 0 {
			m.Payload = make(map[string]any, len(s.Payload))
			for k, v := range s.Payload {
				m.Payload[k] = valueToAny(v)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// Delete removes points by id.
func (c *Client) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(id)
	}
	_, err := c.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: c.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("index: delete %d points: %w", len(ids), err)
	}
	return nil
}

// Close tears down the gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func valueToAny(v *qdrant.Value) any {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return v.String()
	}
}
