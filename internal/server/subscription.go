package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gihan9a/braidtrack/internal/utils"
	"gihan9a/braidtrack/pkg/braidproto"

	"github.com/wI2L/jsondiff"
)

// Patch formats a subscriber can ask for with the Patch-Format header
const (
	FormatTracked   = "tracked"
	FormatJSONPatch = "json-patch"
)

// Subscription represents a client subscription to resource changes. It is
// only written to while the resource lock is held.
type Subscription struct {
	ID           string
	Format       string
	W            io.Writer
	F            http.Flusher
	LastResource []byte // Last snapshot sent, JSON Patch subscribers diff against it
	LastHash     string // Version of LastResource
}

// AddSubscription adds a new subscription for a resource
func (h *Hub) AddSubscription(resourceID, format string, w io.Writer, f http.Flusher, snapshot []byte, version string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscription{
		ID:           utils.GenerateRandomID(),
		Format:       format,
		W:            w,
		F:            f,
		LastResource: snapshot,
		LastHash:     version,
	}

	if _, exists := h.subscriptions[resourceID]; !exists {
		h.subscriptions[resourceID] = make(map[string]*Subscription)
	}
	h.subscriptions[resourceID][sub.ID] = sub

	h.logger.Info("Added subscription", "subscription", sub.ID, "resource", resourceID, "format", format)
	return sub
}

// RemoveSubscription removes a subscription
func (h *Hub) RemoveSubscription(resourceID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, exists := h.subscriptions[resourceID]; exists {
		if _, ok := subs[subID]; !ok {
			return
		}
		delete(subs, subID)
		h.logger.Info("Removed subscription", "subscription", subID, "resource", resourceID)

		// Clean up empty subscription maps
		if len(subs) == 0 {
			delete(h.subscriptions, resourceID)
		}
	}
}

func (h *Hub) subscribers(resourceID string) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]*Subscription, 0, len(h.subscriptions[resourceID]))
	for _, sub := range h.subscriptions[resourceID] {
		subs = append(subs, sub)
	}
	return subs
}

// PublishAll publishes every resource with pending changes
func (h *Hub) PublishAll() {
	for _, id := range h.Resources() {
		if _, err := h.Publish(id); err != nil {
			h.logger.Error("Publish failed", "resource", id, "err", err)
		}
	}
}

// Publish extracts the pending diff of a resource, clears its logs and
// sends the diff to every subscriber. It reports whether a new version was
// produced.
func (h *Hub) Publish(resourceID string) (bool, error) {
	res := h.resource(resourceID)
	if res == nil {
		return false, fmt.Errorf("%s: resource not found", resourceID)
	}

	res.mu.Lock()
	defer res.mu.Unlock()

	diff := res.entity.GetUpdates()
	if len(diff) == 0 {
		return false, nil
	}

	body, err := json.Marshal(diff)
	if err != nil {
		return false, fmt.Errorf("failed to encode diff: %w", err)
	}
	snapshot, err := json.Marshal(res.entity.Serialize())
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	// The diff is committed from here on
	res.entity.ClearUpdates()

	newHash := utils.CalculateHash(snapshot)
	if newHash == res.version {
		h.logger.Debug("Resource unchanged, skipping update", "resource", resourceID)
		return false, nil
	}

	parent := res.version
	res.version = newHash
	res.snapshot = snapshot

	subs := h.subscribers(resourceID)
	h.logger.Debug("Publishing update", "resource", resourceID, "version", newHash, "subscribers", len(subs))

	for _, sub := range subs {
		var err error
		switch sub.Format {
		case FormatJSONPatch:
			err = h.sendPatchUpdate(sub, snapshot, newHash)
			if err != nil {
				h.logger.Warn("Error sending patch update, falling back to full update", "subscription", sub.ID, "err", err)
				err = h.sendFullUpdate(sub, snapshot, newHash)
			}
		default:
			err = h.sendDiffUpdate(sub, body, parent, newHash)
		}
		if err != nil {
			h.logger.Warn("Dropping subscription", "subscription", sub.ID, "resource", resourceID, "err", err)
			h.RemoveSubscription(resourceID, sub.ID)
			continue
		}

		sub.LastResource = snapshot
		sub.LastHash = newHash
	}

	return true, nil
}

// sendFullUpdate sends a full resource snapshot to a subscriber
func (h *Hub) sendFullUpdate(sub *Subscription, snapshot []byte, version string) error {
	return h.send(sub, &braidproto.Update{
		Version: version,
		Body:    snapshot,
	})
}

// sendDiffUpdate sends a tracked diff to a subscriber
func (h *Hub) sendDiffUpdate(sub *Subscription, diff []byte, parent, version string) error {
	return h.send(sub, &braidproto.Update{
		Version:   version,
		Parents:   []string{parent},
		MergeType: braidproto.MergeTypeTracked,
		Body:      diff,
	})
}

// sendPatchUpdate sends a JSON Patch computed against the subscriber's last snapshot
func (h *Hub) sendPatchUpdate(sub *Subscription, snapshot []byte, version string) error {
	patchOperations, err := jsondiff.CompareJSON(sub.LastResource, snapshot)
	if err != nil {
		return err
	}

	if len(patchOperations) == 0 {
		// No changes detected
		return nil
	}

	patches := make([]braidproto.Patch, 0, len(patchOperations))
	for _, op := range patchOperations {
		valueJSON, err := json.Marshal(op.Value)
		if err != nil {
			return err
		}
		patches = append(patches, braidproto.Patch{
			Unit:    op.Type,
			Range:   string(op.Path),
			Content: string(valueJSON),
		})
	}

	return h.send(sub, &braidproto.Update{
		Version: version,
		Parents: []string{sub.LastHash},
		Patches: patches,
	})
}

func (h *Hub) send(sub *Subscription, u *braidproto.Update) error {
	if err := braidproto.WriteUpdate(sub.W, u); err != nil {
		return err
	}
	if sub.F != nil {
		sub.F.Flush()
	}
	return nil
}
