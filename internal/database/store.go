package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tavira/kestrel/internal/model"
	"github.com/tavira/kestrel/internal/store"
)

// relayDoc is the persisted shape of one relay: state and schedule
// participation are independent fields keyed by the same document ID.
type relayDoc struct {
	ID              string `bson:"_id"`
	On              bool   `bson:"on"`
	ScheduleEnabled bool   `bson:"schedule_enabled"`
}

// tokenDoc holds the single registered push delivery token.
type tokenDoc struct {
	ID    string `bson:"_id"`
	Token string `bson:"token"`
}

const pushTokenID = "default"

// Store is the MongoDB-backed store.Store implementation. Multi-key
// atomicity (Apply, coupled SetRelay) uses multi-document transactions, so
// the deployment must be a replica set.
type Store struct {
	db        *MongoDB
	relays    *mongo.Collection
	schedules *mongo.Collection
	logs      *mongo.Collection
	tokens    *mongo.Collection
}

var _ store.Store = (*Store)(nil)

// NewStore creates the Mongo-backed store.
func NewStore(db *MongoDB) *Store {
	return &Store{
		db:        db,
		relays:    db.GetCollection(CollectionRelays),
		schedules: db.GetCollection(CollectionSchedules),
		logs:      db.GetCollection(CollectionScheduleLogs),
		tokens:    db.GetCollection(CollectionPushTokens),
	}
}

// Snapshot reads the rule set and both relay maps inside one session
// transaction so the evaluator never sees enablement that is stale relative
// to the states.
func (s *Store) Snapshot(ctx context.Context) (*model.Snapshot, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	session, err := s.db.Client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctxTimeout)

	result, err := session.WithTransaction(ctxTimeout, func(sc mongo.SessionContext) (interface{}, error) {
		snap := &model.Snapshot{
			Relays:          model.RelayState{},
			ScheduleEnabled: model.ScheduleEnabled{},
		}

		cursor, err := s.schedules.Find(sc, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("failed to read schedules: %w", err)
		}
		if err := cursor.All(sc, &snap.Rules); err != nil {
			return nil, fmt.Errorf("failed to decode schedules: %w", err)
		}

		cursor, err = s.relays.Find(sc, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("failed to read relays: %w", err)
		}
		var docs []relayDoc
		if err := cursor.All(sc, &docs); err != nil {
			return nil, fmt.Errorf("failed to decode relays: %w", err)
		}
		for _, doc := range docs {
			snap.Relays[doc.ID] = doc.On
			snap.ScheduleEnabled[doc.ID] = doc.ScheduleEnabled
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*model.Snapshot), nil
}

// Apply persists every relay write and every rule stamp in one transaction.
// On error nothing is committed, leaving the tick retryable within the same
// minute bucket.
func (s *Store) Apply(ctx context.Context, writes model.RelayState, stamps []model.RuleStamp) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	session, err := s.db.Client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctxTimeout)

	_, err = session.WithTransaction(ctxTimeout, func(sc mongo.SessionContext) (interface{}, error) {
		for id, on := range writes {
			_, err := s.relays.UpdateOne(sc,
				bson.M{"_id": id},
				bson.M{"$set": bson.M{"on": on}},
				options.Update().SetUpsert(true),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to write relay %s: %w", id, err)
			}
		}
		for _, stamp := range stamps {
			_, err := s.schedules.UpdateOne(sc,
				bson.M{"_id": stamp.RuleID},
				bson.M{"$set": bson.M{
					"last_executed_minute": stamp.MinuteKey,
					"last_run_at":          stamp.RunAt.Format(time.RFC3339),
				}},
			)
			if err != nil {
				return nil, fmt.Errorf("failed to stamp rule %s: %w", stamp.RuleID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply evaluation: %w", err)
	}
	return nil
}

func (s *Store) AppendLog(ctx context.Context, entry model.ScheduleLog) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.logs.InsertOne(ctxTimeout, entry); err != nil {
		return fmt.Errorf("failed to append schedule log: %w", err)
	}
	return nil
}

func (s *Store) ListRules(ctx context.Context) ([]model.ScheduleRule, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.schedules.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	var rules []model.ScheduleRule
	if err := cursor.All(ctxTimeout, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	return rules, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *model.ScheduleRule) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.schedules.InsertOne(ctxTimeout, rule); err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

func (s *Store) UpdateRule(ctx context.Context, id, clock string, action model.Action) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.schedules.UpdateOne(ctxTimeout,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"time": clock, "action": action}},
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.schedules.DeleteOne(ctxTimeout, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetRelay writes one relay's state; with coupleEnabled the schedule flag is
// set to the same value in the same document update, so the pair is atomic
// without a transaction.
func (s *Store) SetRelay(ctx context.Context, id string, on bool, coupleEnabled bool) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{"on": on}
	if coupleEnabled {
		set["schedule_enabled"] = on
	}
	_, err := s.relays.UpdateOne(ctxTimeout,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set relay %s: %w", id, err)
	}
	return nil
}

func (s *Store) PushToken(ctx context.Context) (string, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc tokenDoc
	err := s.tokens.FindOne(ctxTimeout, bson.M{"_id": pushTokenID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("failed to read push token: %w", err)
	}
	return doc.Token, nil
}

func (s *Store) ListLogs(ctx context.Context, limit int) ([]model.ScheduleLog, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "executed_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.logs.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule logs: %w", err)
	}
	var entries []model.ScheduleLog
	if err := cursor.All(ctxTimeout, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode schedule logs: %w", err)
	}
	return entries, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client.Ping(ctx, nil)
}
