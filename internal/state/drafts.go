package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/voice-coach/internal/assessment"
)

// DefaultDraftTTL bounds how long an abandoned assessment lingers.
const DefaultDraftTTL = 2 * time.Hour

// Drafts stores assessment drafts as JSON documents keyed by id, with a
// per-owner index so a logout can drop everything a user left open.
type Drafts struct {
	store Store
	ttl   time.Duration
}

var _ assessment.DraftStore = (*Drafts)(nil)

// NewDrafts wraps store. A non-positive ttl uses DefaultDraftTTL.
func NewDrafts(store Store, ttl time.Duration) *Drafts {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &Drafts{store: store, ttl: ttl}
}

func draftKey(id string) string    { return "draft:" + id }
func claimKey(id string) string    { return "draft-claim:" + id }
func ownerKey(owner string) string { return "owner-drafts:" + owner }

// Save writes the draft and indexes it under owner.
func (d *Drafts) Save(ctx context.Context, id, owner string, draft *assessment.Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := d.store.Set(ctx, draftKey(id), data, d.ttl); err != nil {
		return err
	}
	return d.store.AddMember(ctx, ownerKey(owner), id, d.ttl)
}

// Load returns nil, nil when no draft exists.
func (d *Drafts) Load(ctx context.Context, id string) (*assessment.Draft, error) {
	data, err := d.store.Get(ctx, draftKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var draft assessment.Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Delete removes the draft and its owner index entry. A claim is left to
// expire so a request that loaded the draft earlier cannot claim it again.
func (d *Drafts) Delete(ctx context.Context, id, owner string) error {
	if err := d.store.Delete(ctx, draftKey(id)); err != nil {
		return err
	}
	return d.store.RemoveMember(ctx, ownerKey(owner), id)
}

// Claim marks id as taken for analysis. Only the first caller gets true.
func (d *Drafts) Claim(ctx context.Context, id string) (bool, error) {
	return d.store.SetNX(ctx, claimKey(id), []byte("1"), d.ttl)
}

// IDsByOwner lists draft ids indexed under owner.
func (d *Drafts) IDsByOwner(ctx context.Context, owner string) ([]string, error) {
	return d.store.Members(ctx, ownerKey(owner))
}
