package store

import (
	"context"
	"sort"
	"strings"

	"github.com/roach88/jsondb/internal/path"
	"github.com/roach88/jsondb/internal/queryir"
	"github.com/roach88/jsondb/internal/querysql"
	"github.com/roach88/jsondb/internal/record"
)

// FetchIDsByPropertyValue returns the keys of the children of collection
// whose property equals value (string values only), sorted.
//
// When (collection, property) is a declared index the lookup uses the idx
// column. Otherwise every path is pattern matched, which is unbounded work
// and logged as such; backends without regex support fail with
// UNSUPPORTED_QUERY.
func (e *Engine) FetchIDsByPropertyValue(ctx context.Context, collection, property, value string) ([]string, error) {
	dbColl, err := path.ToStoragePath(collection)
	if err != nil {
		return nil, err
	}
	prop, err := path.ValidateKey(property)
	if err != nil {
		return nil, err
	}

	var sel queryir.Select
	key := record.IndexKey(dbColl, prop)
	if e.indexes.Contains(key) {
		sel = querysql.IndexLookup(key, value)
	} else {
		if !e.regex {
			return nil, record.NewUnsupportedQueryError(
				"no index on " + key + " and " + e.kind.String() + " has no regex support")
		}
		e.logger.Warn("property lookup not indexed, scanning all rows",
			"collection", path.External(dbColl), "property", prop)
		sel = querysql.ScanLookup(dbColl, prop, value)
	}

	rows, err := e.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suffix := path.Separator + prop + path.Separator
	seen := make(map[string]struct{})
	var ids []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, record.NewStorageError("scan row", err)
		}
		owner := strings.TrimSuffix(p, suffix)
		if len(owner) <= len(dbColl) || !strings.HasPrefix(owner, dbColl) {
			continue
		}
		id := strings.TrimPrefix(path.External(path.Root+owner[len(dbColl):]), path.Separator)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, record.NewStorageError("read rows", err)
	}
	sort.Strings(ids)
	return ids, nil
}
