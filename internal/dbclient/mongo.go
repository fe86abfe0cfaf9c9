package dbclient

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"librarydesk/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// mongoConnector implements Connector for MongoDB.
type mongoConnector struct {
	client *mongo.Client
	dbName string
	logger *zap.Logger
}

// mongoQuery is the JSON document accepted by Query.
type mongoQuery struct {
	Collection string         `json:"collection"`
	Filter     map[string]any `json:"filter,omitempty"`
	Projection map[string]any `json:"projection,omitempty"`
	Sort       map[string]any `json:"sort,omitempty"`
}

// buildMongoURI accepts either a full mongodb:// or mongodb+srv:// URI in
// Host, or builds one from host, port and credentials.
func buildMongoURI(t domain.ExportTarget) string {
	if strings.HasPrefix(t.Host, "mongodb+srv://") || strings.HasPrefix(t.Host, "mongodb://") {
		uri := t.Host
		if t.Password != "" {
			uri = strings.ReplaceAll(uri, "<password>", url.QueryEscape(t.Password))
			uri = strings.ReplaceAll(uri, "<db_password>", url.QueryEscape(t.Password))
		}
		return uri
	}

	port := t.Port
	if port == 0 {
		port = 27017
	}
	uri := fmt.Sprintf("mongodb://%s:%d", t.Host, port)
	if t.Username != "" {
		uri = fmt.Sprintf("mongodb://%s:%s@%s:%d",
			url.QueryEscape(t.Username), url.QueryEscape(t.Password), t.Host, port)
	}

	if len(t.Options) > 0 {
		keys := make([]string, 0, len(t.Options))
		for k := range t.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		params := make([]string, 0, len(keys))
		for _, k := range keys {
			params = append(params, k+"="+url.QueryEscape(t.Options[k]))
		}
		uri += "/?" + strings.Join(params, "&")
	}
	return uri
}

func newMongoConnector(t domain.ExportTarget, logger *zap.Logger) (*mongoConnector, error) {
	dbName := t.Database
	if dbName == "" {
		dbName = "librarydesk"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(buildMongoURI(t)))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	logger.Debug("mongo client created", zap.String("database", dbName))

	return &mongoConnector{client: client, dbName: dbName, logger: logger}, nil
}

func (m *mongoConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil)
}

func (m *mongoConnector) WriteSnapshot(ctx context.Context, snap domain.Snapshot) (*WriteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	result := &WriteResult{Tables: make(map[string]int)}

	for _, t := range snapshotTables(snap) {
		coll := db.Collection(t.name)
		if _, err := coll.DeleteMany(ctx, bson.M{}); err != nil {
			return nil, fmt.Errorf("clear %s: %w", t.name, err)
		}
		if len(t.rows) > 0 {
			if _, err := coll.InsertMany(ctx, tableDocuments(t)); err != nil {
				return nil, fmt.Errorf("insert %s: %w", t.name, err)
			}
		}
		m.logger.Debug("collection written", zap.String("collection", t.name), zap.Int("docs", len(t.rows)))
		result.Tables[t.name] = len(t.rows)
		result.Total += len(t.rows)
	}
	return result, nil
}

// tableDocuments turns table rows into documents keyed by column name; the
// primary key column becomes _id.
func tableDocuments(t table) []any {
	docs := make([]any, 0, len(t.rows))
	for _, row := range t.rows {
		doc := make(bson.D, 0, len(t.columns))
		for i, c := range t.columns {
			key := c.name
			if c.primary {
				key = "_id"
			}
			doc = append(doc, bson.E{Key: key, Value: row[i]})
		}
		docs = append(docs, doc)
	}
	return docs
}

// unmarshalEJSON converts MongoDB Extended JSON values ($oid, $date, ...)
// inside a parsed filter into their BSON types.
func (m *mongoConnector) unmarshalEJSON(field map[string]any) map[string]any {
	if field == nil {
		return nil
	}
	raw, err := json.Marshal(field)
	if err != nil {
		return field
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(raw, false, &doc); err != nil {
		m.logger.Warn("extended json parse", zap.Error(err))
		return field
	}
	result := make(map[string]any, len(doc))
	for _, elem := range doc {
		result[elem.Key] = elem.Value
	}
	return result
}

func (m *mongoConnector) Query(ctx context.Context, query string, limit int) (*QueryPage, error) {
	var mq mongoQuery
	if err := json.Unmarshal([]byte(query), &mq); err != nil {
		return nil, fmt.Errorf("invalid query JSON: %w", err)
	}
	if mq.Collection == "" {
		return nil, fmt.Errorf("query must specify 'collection'")
	}
	if limit <= 0 {
		limit = 1000
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().SetLimit(int64(limit) + 1)
	if p := m.unmarshalEJSON(mq.Projection); p != nil {
		opts.SetProjection(p)
	}
	if s := m.unmarshalEJSON(mq.Sort); s != nil {
		opts.SetSort(s)
	}
	filter := m.unmarshalEJSON(mq.Filter)
	if filter == nil {
		filter = map[string]any{}
	}

	cursor, err := m.client.Database(m.dbName).Collection(mq.Collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.D
	for cursor.Next(ctx) {
		var doc bson.D
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}
	page := documentsPage(docs)
	page.HasMore = hasMore
	return page, nil
}

// documentsPage flattens documents into a column/row page. Columns are the
// union of all keys, _id first, then alphabetical.
func documentsPage(docs []bson.D) *QueryPage {
	seen := map[string]bool{}
	var columns []string
	for _, doc := range docs {
		for _, elem := range doc {
			if !seen[elem.Key] {
				seen[elem.Key] = true
				columns = append(columns, elem.Key)
			}
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		if columns[i] == "_id" {
			return true
		}
		if columns[j] == "_id" {
			return false
		}
		return columns[i] < columns[j]
	})

	rows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		values := make(map[string]any, len(doc))
		for _, elem := range doc {
			values[elem.Key] = elem.Value
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			switch v := values[col].(type) {
			case nil:
			case string, float64, int32, int64, bool:
				row[j] = v
			default:
				row[j] = fmt.Sprintf("%v", v)
			}
		}
		rows = append(rows, row)
	}
	return &QueryPage{Columns: columns, Rows: rows}
}

func (m *mongoConnector) Introspect(ctx context.Context) (*SchemaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	db := m.client.Database(m.dbName)
	collections, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(collections)

	schema := &SchemaInfo{}
	for _, name := range collections {
		info := TableInfo{Name: name}

		// one sampled document gives the field names
		var doc bson.D
		err := db.Collection(name).FindOne(ctx, bson.M{}).Decode(&doc)
		if err == nil {
			for _, elem := range doc {
				info.Columns = append(info.Columns, ColumnInfo{Name: elem.Key, Type: fmt.Sprintf("%T", elem.Value)})
			}
		}
		schema.Tables = append(schema.Tables, info)
	}
	return schema, nil
}

func (m *mongoConnector) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
