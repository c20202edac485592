package redis

import "github.com/vexhub/vexdb/pkg/models"

// Key layout. Every key is namespaced under "vexdb:" so a shared Redis
// instance stays navigable.
//
//	vexdb:col:<collection>            hash: schema JSON under "schema"
//	vexdb:doc:<collection>:<idKey>    hash: one point
//	vexdb:idx:<collection>            FT index over the doc prefix
//	vexdb:cache:<...>                 embedding cache entries (via KV)
const (
	keyPrefix = "vexdb:"

	// Reserved hash fields inside a point hash. Vector fields use their
	// schema names, which never collide with the "__" prefix.
	fieldID      = "__id"
	fieldPayload = "__payload"

	// metaSchemaField holds the bound schema JSON in the collection hash.
	metaSchemaField = "schema"
)

func metaKey(collection string) string {
	return keyPrefix + "col:" + collection
}

func docPrefix(collection string) string {
	return keyPrefix + "doc:" + collection + ":"
}

func docKey(collection string, id models.PointID) string {
	return docPrefix(collection) + id.Key()
}

func indexName(collection string) string {
	return keyPrefix + "idx:" + collection
}
