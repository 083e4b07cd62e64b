package document

import (
	"context"
	"errors"
	"fmt"

	mongostore "github.com/admitdesk/admitdesk/pkg/store/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoExecutor adapts the store/mongodb adapter to the Executor contract.
// Server-time fields are written with $currentDate, so the value is assigned
// by mongod, never by this process.
type MongoExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoExecutor creates an Executor backed by the given adapter.
func NewMongoExecutor(adapter *mongostore.Adapter) (*MongoExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoExecutor{adapter: adapter}, nil
}

func (e *MongoExecutor) Get(ctx context.Context, collection, id string) (Document, error) {
	out := bson.M{}
	err := e.adapter.FindOne(ctx, collection, bson.M{"_id": id}, &out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("findOne %s/%s: %w", collection, id, err)
	}
	return normalizeDocument(out), nil
}

func (e *MongoExecutor) Insert(ctx context.Context, collection, id string, doc Document, serverTimeFields []string) error {
	update := bson.M{"$set": toBSON(doc)}
	if len(serverTimeFields) > 0 {
		stamps := bson.M{}
		for _, f := range serverTimeFields {
			stamps[f] = true
		}
		update["$currentDate"] = stamps
	}
	_, err := e.adapter.UpdateOne(ctx, collection, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (e *MongoExecutor) Update(ctx context.Context, collection, id string, patch Document, serverTimeFields []string) error {
	update := bson.M{}
	if len(patch) > 0 {
		update["$set"] = toBSON(patch)
	}
	if len(serverTimeFields) > 0 {
		stamps := bson.M{}
		for _, f := range serverTimeFields {
			stamps[f] = true
		}
		update["$currentDate"] = stamps
	}
	res, err := e.adapter.UpdateOne(ctx, collection, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (e *MongoExecutor) Delete(ctx context.Context, collection, id string) error {
	res, err := e.adapter.DeleteOne(ctx, collection, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (e *MongoExecutor) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	filter := predicateFilter(q.Predicates)
	if q.Resume != nil && q.Order.Field != "" {
		filter = andFilters(filter, resumeFilter(q.Order, *q.Resume))
	}

	opts := options.Find()
	if q.Order.Field != "" {
		dir := 1
		if q.Order.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.Order.Field, Value: dir}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	raw, err := e.adapter.Find(ctx, collection, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(raw))
	for _, d := range raw {
		docs = append(docs, normalizeDocument(d))
	}
	return docs, nil
}

func (e *MongoExecutor) Count(ctx context.Context, collection string, predicates []Predicate) (int64, error) {
	n, err := e.adapter.CountDocuments(ctx, collection, predicateFilter(predicates))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// predicateFilter translates predicates to a Mongo filter, merging multiple
// operators on the same field (e.g. a >= / < prefix range).
func predicateFilter(predicates []Predicate) bson.M {
	filter := bson.M{}
	for _, p := range predicates {
		var clause bson.M
		if existing, ok := filter[p.Field].(bson.M); ok {
			clause = existing
		} else {
			clause = bson.M{}
		}
		switch p.Op {
		case OpEq:
			clause["$eq"] = p.Value
		case OpNe:
			clause["$ne"] = p.Value
		case OpGt:
			clause["$gt"] = p.Value
		case OpGte:
			clause["$gte"] = p.Value
		case OpLt:
			clause["$lt"] = p.Value
		case OpLte:
			clause["$lte"] = p.Value
		case OpContains:
			// Mongo matches array membership with plain equality.
			clause["$eq"] = p.Value
		}
		filter[p.Field] = clause
	}
	return filter
}

// resumeFilter builds the keyset clause that selects documents strictly
// after the resume position under (order field, _id asc) ordering.
func resumeFilter(order OrderBy, key ResumeKey) bson.M {
	rangeOp := "$gt"
	if order.Desc {
		rangeOp = "$lt"
	}
	return bson.M{"$or": bson.A{
		bson.M{order.Field: bson.M{rangeOp: key.Value}},
		bson.M{order.Field: key.Value, "_id": bson.M{"$gt": key.ID}},
	}}
}

func andFilters(a, b bson.M) bson.M {
	if len(a) == 0 {
		return b
	}
	return bson.M{"$and": bson.A{a, b}}
}

func toBSON(doc Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// normalizeDocument converts BSON decode artifacts back to plain Go values:
// primitive.DateTime to time.Time (UTC), primitive.A to []any, and _id to
// the "id" string key.
func normalizeDocument(m bson.M) Document {
	out := make(Document, len(m))
	for k, v := range m {
		if k == "_id" {
			out["id"] = idString(v)
			continue
		}
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.A:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalizeValue(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalizeValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	default:
		return v
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
