package vexdb

import (
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "memory" or "redis"
	addrs    []string
	username string
	password string
	db       int

	embedder     TextEmbedder
	cacheEnabled bool

	denseModel  string
	sparseModel string

	rrfK         int
	oversampling int

	logger *zap.Logger
}

// WithInMemory runs the engine on the embedded in-process backend. This is
// the default when no backend option is given.
func WithInMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithRedis connects the engine to a Redis 8+ instance with the RediSearch
// module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedisCluster connects to multiple Redis addresses with credentials.
func WithRedisCluster(addrs []string, username, password string, db int) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
		c.username = username
		c.password = password
		c.db = db
	})
}

// WithEmbedder sets the embedding provider. Required for Add and Query;
// a client without one still serves Count, Retrieve and collection calls.
func WithEmbedder(e TextEmbedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithEmbeddingCache caches embeddings in the backend's key-value space, so
// re-ingesting a text never repeats the provider call.
func WithEmbeddingCache() Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheEnabled = true
	})
}

// WithDenseModel selects the active dense model by catalog identifier.
func WithDenseModel(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.denseModel = name
	})
}

// WithSparseModel selects the active sparse model, enabling hybrid search.
func WithSparseModel(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sparseModel = name
	})
}

// WithRRFConstant overrides the reciprocal rank fusion constant.
func WithRRFConstant(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.rrfK = k
	})
}

// WithOversampling overrides the sub-query oversampling factor.
func WithOversampling(factor int) Option {
	return optionFunc(func(c *clientConfig) {
		c.oversampling = factor
	})
}

// WithLogger sets the logger for background warnings (cache failures and
// the like). Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// QueryOption tunes a single query call.
type QueryOption interface {
	applyQuery(*queryConfig)
}

type queryOptionFunc func(*queryConfig)

func (f queryOptionFunc) applyQuery(c *queryConfig) { f(c) }

type queryConfig struct {
	limit int
	field string
}

// DefaultQueryLimit is the result list size when WithLimit is not given.
const DefaultQueryLimit = 10

// WithLimit caps the fused result list.
func WithLimit(n int) QueryOption {
	return queryOptionFunc(func(c *queryConfig) {
		c.limit = n
	})
}

// WithField restricts the query to a single vector field, skipping fusion.
// The field must belong to one of the active models.
func WithField(name string) QueryOption {
	return queryOptionFunc(func(c *queryConfig) {
		c.field = name
	})
}
