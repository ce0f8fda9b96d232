// Package redisstore backs the docstore interface with Redis: documents
// as JSON values, a membership set per collection, and change fan-out
// over Pub/Sub so live queries see newly added documents.
//
// Keys:
//   - doc:{collection}:{id}   JSON document body
//   - col:{collection}        SET of document ids
//   - channel docs:{collection}  published change events
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/sonyflake"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

type Store struct {
	cli *redis.Client
	sf  *sonyflake.Sonyflake
}

func New(opt Options) (*Store, error) {
	if opt.Addr == "" {
		return nil, errors.New("redisstore: missing addr")
	}
	if opt.Timeout == 0 {
		opt.Timeout = 5 * time.Second
	}
	cli := redis.NewClient(&redis.Options{
		Addr:         opt.Addr,
		Password:     opt.Password,
		DB:           opt.DB,
		DialTimeout:  opt.Timeout,
		ReadTimeout:  opt.Timeout,
		WriteTimeout: opt.Timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), opt.Timeout)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redisstore: ping: %w", err)
	}
	sf := sonyflake.NewSonyflake(sonyflake.Settings{})
	if sf == nil {
		_ = cli.Close()
		return nil, errors.New("redisstore: sonyflake init failed")
	}
	return &Store{cli: cli, sf: sf}, nil
}

func (s *Store) Close() error { return s.cli.Close() }

func docKey(collection, id string) string { return "doc:" + collection + ":" + id }
func colKey(collection string) string     { return "col:" + collection }
func channel(collection string) string    { return "docs:" + collection }

// changeEvent is the Pub/Sub payload for an added document.
type changeEvent struct {
	ID     string          `json:"id"`
	Fields docstore.Fields `json:"fields"`
}

// resolve replaces write-time sentinels. Delete on a new document is a
// no-op; ServerTimestamp takes the supplied server instant.
func resolve(fields docstore.Fields, now time.Time) docstore.Fields {
	out := make(docstore.Fields, len(fields))
	for k, v := range fields {
		switch v {
		case docstore.Delete:
		case docstore.ServerTimestamp:
			out[k] = now.UTC().Format(docstore.TimeLayout)
		default:
			out[k] = v
		}
	}
	return out
}

func (s *Store) serverTime(ctx context.Context) (time.Time, error) {
	// Redis TIME keeps write stamps off the client clock.
	t, err := s.cli.Time(ctx).Result()
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	now, err := s.serverTime(ctx)
	if err != nil {
		return "", err
	}
	n, err := s.sf.NextID()
	if err != nil {
		return "", err
	}
	id := strconv.FormatUint(n, 10)

	resolved := resolve(fields, now)
	body, err := json.Marshal(resolved)
	if err != nil {
		return "", err
	}

	pipe := s.cli.TxPipeline()
	pipe.Set(ctx, docKey(collection, id), body, 0)
	pipe.SAdd(ctx, colKey(collection), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	evt, err := json.Marshal(changeEvent{ID: id, Fields: resolved})
	if err != nil {
		return "", err
	}
	if err := s.cli.Publish(ctx, channel(collection), evt).Err(); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	ids, err := s.cli.SMembers(ctx, colKey(q.Collection)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = docKey(q.Collection, id)
	}
	vals, err := s.cli.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	var out []docstore.Document
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue // id set ahead of a deleted doc body
		}
		var fields docstore.Fields
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			continue
		}
		d := docstore.Document{ID: ids[i], Fields: fields}
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	now, err := s.serverTime(ctx)
	if err != nil {
		return err
	}
	key := docKey(collection, id)
	raw, err := s.cli.Get(ctx, key).Result()
	if err == redis.Nil {
		return docstore.ErrNotFound
	}
	if err != nil {
		return err
	}
	var body docstore.Fields
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return fmt.Errorf("redisstore: corrupt document %s: %w", key, err)
	}
	for k, v := range fields {
		switch v {
		case docstore.Delete:
			delete(body, k)
		case docstore.ServerTimestamp:
			body[k] = now.UTC().Format(docstore.TimeLayout)
		default:
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return s.cli.Set(ctx, key, b, 0).Err()
}

type subscription struct {
	ps *redis.PubSub
}

func (sub *subscription) Close() error { return sub.ps.Close() }

// Subscribe attaches to the collection channel, then replays the
// current result set as the first batch. The window between attach and
// replay can deliver a document twice; consumers dedupe by id.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, h docstore.Handler) (docstore.Subscription, error) {
	ps := s.cli.Subscribe(ctx, channel(q.Collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	go func() {
		for msg := range ps.Channel() {
			var evt changeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				h(nil, fmt.Errorf("redisstore: bad change event: %w", err))
				continue
			}
			d := docstore.Document{ID: evt.ID, Fields: evt.Fields}
			if q.Matches(d) {
				h([]docstore.Document{d}, nil)
			}
		}
	}()

	docs, err := s.Query(ctx, q)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	if len(docs) > 0 {
		h(docs, nil)
	}
	return &subscription{ps: ps}, nil
}
