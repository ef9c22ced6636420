package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/FalkorDB/falkordb-go/v2"

	"github.com/osinto/casefile/internal/logging"
)

const (
	investigationPrefix = "investigation_"
	metaGraphName       = "investigations_meta"
)

// Config holds connection settings for FalkorDB
type Config struct {
	Host         string        // FalkorDB host
	Port         int           // FalkorDB port
	Password     string        // optional password
	MaxRetries   int           // max connection retries
	DialTimeout  time.Duration // connection timeout
	ReadTimeout  time.Duration // read timeout
	WriteTimeout time.Duration // write timeout
	PoolSize     int           // connection pool size
}

// DefaultConfig returns default connection settings
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		Password:     "",
		MaxRetries:   3,
		DialTimeout:  30 * time.Second,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		PoolSize:     10,
	}
}

// Store manages the FalkorDB connection and hands out per-investigation
// graph handles. Every investigation is backed by its own graph named
// "investigation_<id>"; investigation metadata lives in a dedicated graph.
type Store struct {
	config Config
	logger *logging.Logger
	db     *falkordb.FalkorDB
}

// NewStore creates a store from connection settings
func NewStore(config Config) *Store {
	return &Store{
		config: config,
		logger: logging.GetLogger("graph.store"),
	}
}

// Name returns the lifecycle component name
func (s *Store) Name() string {
	return "graph-store"
}

// Start connects to FalkorDB and verifies the server is reachable
func (s *Store) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("Connecting to FalkorDB at %s", addr)

	// falkordb.ConnectionOption is an alias for redis.Options
	connOpts := &falkordb.ConnectionOption{
		Addr:         addr,
		Password:     s.config.Password,
		DialTimeout:  s.config.DialTimeout,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		PoolSize:     s.config.PoolSize,
		MaxRetries:   s.config.MaxRetries,
	}

	db, err := falkordb.FalkorDBNew(connOpts)
	if err != nil {
		return fmt.Errorf("failed to create FalkorDB client: %w", err)
	}
	s.db = db

	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("FalkorDB is not reachable at %s: %w", addr, err)
	}

	s.logger.Info("Successfully connected to FalkorDB")
	return nil
}

// Stop closes the underlying connection pool
func (s *Store) Stop(ctx context.Context) error {
	s.logger.Info("Closing FalkorDB connection")
	if s.db != nil && s.db.Conn != nil {
		return s.db.Conn.Close()
	}
	return nil
}

// Ping checks whether FalkorDB answers commands
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return opError("ping", fmt.Errorf("store not started"))
	}
	if err := s.db.Conn.Do(ctx, "GRAPH.LIST").Err(); err != nil {
		return opError("ping", err)
	}
	return nil
}

// GraphName builds the backing graph name for an investigation
func GraphName(investigationID string) string {
	return investigationPrefix + investigationID
}

// Graph returns a handle for an arbitrary named graph. FalkorDB creates
// graphs lazily on first write.
func (s *Store) Graph(name string) *Graph {
	return &Graph{name: name, inner: s.db.SelectGraph(name)}
}

// Investigation returns the graph handle backing one investigation
func (s *Store) Investigation(investigationID string) *Graph {
	return s.Graph(GraphName(investigationID))
}

// TouchInvestigation materializes an investigation graph by running a
// trivial query against it. FalkorDB creates graphs lazily.
func (s *Store) TouchInvestigation(ctx context.Context, investigationID string) error {
	_, err := s.Investigation(investigationID).Query(ctx, "RETURN 1", nil)
	return err
}

// QuerierSource wraps a Store so its investigation handles are typed as
// Querier, matching the capability interfaces of the consumer services.
type QuerierSource struct {
	*Store
}

// Investigation returns the investigation graph as a Querier
func (s QuerierSource) Investigation(investigationID string) Querier {
	return s.Store.Investigation(investigationID)
}

// Meta returns the metadata graph shared by all investigations
func (s *Store) Meta() *Graph {
	return s.Graph(metaGraphName)
}

// ListGraphs returns every graph name known to the server
func (s *Store) ListGraphs(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, opError("list", fmt.Errorf("store not started"))
	}
	names, err := s.db.Conn.Do(ctx, "GRAPH.LIST").StringSlice()
	if err != nil {
		return nil, opError("list", err)
	}
	return names, nil
}

// ListInvestigations returns investigation IDs discovered from graph names
func (s *Store) ListInvestigations(ctx context.Context) ([]string, error) {
	names, err := s.ListGraphs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, investigationPrefix) {
			ids = append(ids, strings.TrimPrefix(name, investigationPrefix))
		}
	}
	return ids, nil
}

// DeleteInvestigation removes an investigation graph. Deleting a graph
// that does not exist is a no-op.
func (s *Store) DeleteInvestigation(ctx context.Context, investigationID string) error {
	names, err := s.ListGraphs(ctx)
	if err != nil {
		return err
	}

	name := GraphName(investigationID)
	if !containsName(names, name) {
		return nil
	}

	if err := s.db.SelectGraph(name).Delete(); err != nil {
		// "empty key" means the graph vanished between list and delete
		if strings.Contains(err.Error(), "empty key") {
			s.logger.Debug("Graph '%s' does not exist, nothing to delete", name)
			return nil
		}
		return opError("delete", err)
	}

	s.logger.Info("Graph '%s' deleted", name)
	return nil
}

// CountEntities counts Entity nodes in an investigation graph
func (s *Store) CountEntities(ctx context.Context, investigationID string) (int, error) {
	result, err := s.Investigation(investigationID).Query(ctx, "MATCH (n:Entity) RETURN COUNT(n)", nil)
	if err != nil {
		return 0, err
	}
	if result.Empty() {
		return 0, nil
	}
	return intValue(result.Rows[0][0]), nil
}

func containsName(names []string, name string) bool {
	for _, candidate := range names {
		if candidate == name {
			return true
		}
	}
	return false
}
