package tender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis.
//
// Keys:
//
//	supplier:{id}              JSON Supplier
//	suppliers                  sorted set of supplier IDs scored by creation time
//	tender:{id}                JSON Tender
//	tenders                    sorted set of tender IDs scored by creation time
//	tender:{id}:bids           hash supplier ID -> JSON StoredBid
//	tender:{id}:suppliers      list of supplier IDs in first-submission order
//	tender:{id}:invitations    set of invitation tokens
//	invitation:{token}         JSON Invitation
type RedisStore struct {
	client *redis.Client
}

// maxTxRetries bounds optimistic transaction retries when a watched key changes.
const maxTxRetries = 5

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL parses redisURL, connects and pings.
func NewRedisStoreFromURL(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

const (
	suppliersIndex = "suppliers"
	tendersIndex   = "tenders"
)

func supplierKey(id string) string          { return "supplier:" + id }
func tenderKey(id string) string            { return "tender:" + id }
func bidsKey(tenderID string) string        { return "tender:" + tenderID + ":bids" }
func suppliersKey(tenderID string) string   { return "tender:" + tenderID + ":suppliers" }
func invitationsKey(tenderID string) string { return "tender:" + tenderID + ":invitations" }
func invitationKey(token string) string     { return "invitation:" + token }

// watchWithRetry runs txf under WATCH on keys, retrying while another client wins the race.
func (r *RedisStore) watchWithRetry(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = r.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *RedisStore) CreateSupplier(ctx context.Context, s *Supplier) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal supplier: %w", err)
	}

	created, err := r.client.SetNX(ctx, supplierKey(s.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create supplier: %w", err)
	}
	if !created {
		return ErrSupplierExists
	}
	if err := r.client.ZAdd(ctx, suppliersIndex, redis.Z{Score: float64(s.CreatedAt.UnixMilli()), Member: s.ID}).Err(); err != nil {
		return fmt.Errorf("index supplier: %w", err)
	}
	return nil
}

func (r *RedisStore) GetSupplier(ctx context.Context, id string) (*Supplier, error) {
	data, err := r.client.Get(ctx, supplierKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSupplierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get supplier: %w", err)
	}

	var s Supplier
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal supplier %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	values, err := r.loadIndexed(ctx, suppliersIndex, supplierKey)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}

	out := make([]Supplier, 0, len(values))
	for _, raw := range values {
		var s Supplier
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("unmarshal supplier: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *RedisStore) UpdateSupplier(ctx context.Context, s *Supplier) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal supplier: %w", err)
	}

	updated, err := r.client.SetXX(ctx, supplierKey(s.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	if !updated {
		return ErrSupplierNotFound
	}
	return nil
}

func (r *RedisStore) DeleteSupplier(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, supplierKey(id))
		pipe.ZRem(ctx, suppliersIndex, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	if del.Val() == 0 {
		return ErrSupplierNotFound
	}
	return nil
}

func (r *RedisStore) CreateTender(ctx context.Context, t *Tender) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal tender: %w", err)
	}

	created, err := r.client.SetNX(ctx, tenderKey(t.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create tender: %w", err)
	}
	if !created {
		return ErrTenderExists
	}
	if err := r.client.ZAdd(ctx, tendersIndex, redis.Z{Score: float64(t.CreatedAt.UnixMilli()), Member: t.ID}).Err(); err != nil {
		return fmt.Errorf("index tender: %w", err)
	}
	return nil
}

func (r *RedisStore) GetTender(ctx context.Context, id string) (*Tender, error) {
	return getTender(ctx, r.client, id)
}

// getTender reads a tender through c, which is either the client or a watching transaction.
func getTender(ctx context.Context, c redis.Cmdable, id string) (*Tender, error) {
	data, err := c.Get(ctx, tenderKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTenderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tender: %w", err)
	}

	var t Tender
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal tender %s: %w", id, err)
	}
	return &t, nil
}

func (r *RedisStore) ListTenders(ctx context.Context) ([]Tender, error) {
	values, err := r.loadIndexed(ctx, tendersIndex, tenderKey)
	if err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}

	out := make([]Tender, 0, len(values))
	for _, raw := range values {
		var t Tender
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("unmarshal tender: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// loadIndexed returns the JSON documents named by a creation-time index, newest first.
// IDs whose document is gone are skipped.
func (r *RedisStore) loadIndexed(ctx context.Context, index string, key func(string) string) ([]string, error) {
	ids, err := r.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(values))
	for _, v := range values {
		if raw, ok := v.(string); ok {
			out = append(out, raw)
		}
	}
	return out, nil
}

// TransitionTender applies mutate under WATCH on the tender key, so two concurrent
// transitions from the same status cannot both succeed.
func (r *RedisStore) TransitionTender(ctx context.Context, id string, from Status, mutate func(*Tender)) (*Tender, error) {
	var next *Tender

	txf := func(tx *redis.Tx) error {
		t, err := getTender(ctx, tx, id)
		if err != nil {
			return err
		}
		if t.Status != from {
			return ErrTenderNotActive
		}
		mutate(t)

		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal tender: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, tenderKey(id), data, 0)
			return nil
		})
		if err == nil {
			next = t
		}
		return err
	}

	if err := r.watchWithRetry(ctx, txf, tenderKey(id)); err != nil {
		if errors.Is(err, ErrTenderNotFound) || errors.Is(err, ErrTenderNotActive) {
			return nil, err
		}
		return nil, fmt.Errorf("transition tender: %w", err)
	}
	return next, nil
}

func (r *RedisStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	exists, err := r.client.Exists(ctx, tenderKey(inv.TenderID)).Result()
	if err != nil {
		return fmt.Errorf("check tender: %w", err)
	}
	if exists == 0 {
		return ErrTenderNotFound
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invitation: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, invitationKey(inv.Token), data, 0)
		pipe.SAdd(ctx, invitationsKey(inv.TenderID), inv.Token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create invitation: %w", err)
	}
	return nil
}

func (r *RedisStore) GetInvitation(ctx context.Context, token string) (*Invitation, error) {
	data, err := r.client.Get(ctx, invitationKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidInvitation
	}
	if err != nil {
		return nil, fmt.Errorf("get invitation: %w", err)
	}

	var inv Invitation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invitation: %w", err)
	}
	return &inv, nil
}

func (r *RedisStore) MarkInvitationViewed(ctx context.Context, token string) (*Invitation, error) {
	inv, err := r.GetInvitation(ctx, token)
	if err != nil {
		return nil, err
	}
	inv.Status = InvitationViewed

	data, err := json.Marshal(inv)
	if err != nil {
		return nil, fmt.Errorf("marshal invitation: %w", err)
	}
	updated, err := r.client.SetXX(ctx, invitationKey(token), data, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}
	if !updated {
		return nil, ErrInvalidInvitation
	}
	return inv, nil
}

func (r *RedisStore) CountInvitations(ctx context.Context, tenderID string) (int, error) {
	exists, err := r.client.Exists(ctx, tenderKey(tenderID)).Result()
	if err != nil {
		return 0, fmt.Errorf("check tender: %w", err)
	}
	if exists == 0 {
		return 0, ErrTenderNotFound
	}

	n, err := r.client.SCard(ctx, invitationsKey(tenderID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count invitations: %w", err)
	}
	return int(n), nil
}

// UpsertBid writes the bid inside a WATCH transaction on the tender and its bid hash, so
// concurrent submissions from the same supplier cannot create two entries and a bid cannot
// land after the tender left the active state.
func (r *RedisStore) UpsertBid(ctx context.Context, bid *StoredBid) (*StoredBid, error) {
	hashKey := bidsKey(bid.TenderID)
	stored := *bid

	txf := func(tx *redis.Tx) error {
		t, err := getTender(ctx, tx, bid.TenderID)
		if err != nil {
			return err
		}
		if !t.AcceptsBids(bid.UpdatedAt) {
			return ErrTenderNotActive
		}

		stored = *bid
		isNew := false

		existing, err := tx.HGet(ctx, hashKey, bid.SupplierID).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			isNew = true
		case err != nil:
			return err
		default:
			var prev StoredBid
			if err := json.Unmarshal(existing, &prev); err != nil {
				return fmt.Errorf("unmarshal existing bid: %w", err)
			}
			stored.ID = prev.ID
			stored.SubmittedAt = prev.SubmittedAt
		}

		data, err := json.Marshal(&stored)
		if err != nil {
			return fmt.Errorf("marshal bid: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, bid.SupplierID, data)
			if isNew {
				pipe.RPush(ctx, suppliersKey(bid.TenderID), bid.SupplierID)
			}
			return nil
		})
		return err
	}

	if err := r.watchWithRetry(ctx, txf, tenderKey(bid.TenderID), hashKey); err != nil {
		if errors.Is(err, ErrTenderNotFound) || errors.Is(err, ErrTenderNotActive) {
			return nil, err
		}
		return nil, fmt.Errorf("upsert bid: %w", err)
	}
	return &stored, nil
}

func (r *RedisStore) ListBids(ctx context.Context, tenderID string) ([]StoredBid, error) {
	exists, err := r.client.Exists(ctx, tenderKey(tenderID)).Result()
	if err != nil {
		return nil, fmt.Errorf("check tender: %w", err)
	}
	if exists == 0 {
		return nil, ErrTenderNotFound
	}

	suppliers, err := r.client.LRange(ctx, suppliersKey(tenderID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	if len(suppliers) == 0 {
		return nil, nil
	}

	values, err := r.client.HMGet(ctx, bidsKey(tenderID), suppliers...).Result()
	if err != nil {
		return nil, fmt.Errorf("load bids: %w", err)
	}

	bids := make([]StoredBid, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Supplier listed without a bid entry
			continue
		}
		var b StoredBid
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return nil, fmt.Errorf("unmarshal bid for supplier %s: %w", suppliers[i], err)
		}
		bids = append(bids, b)
	}
	return bids, nil
}
