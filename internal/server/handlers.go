package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"gihan9a/braidtrack/pkg/braidproto"
	"gihan9a/braidtrack/pkg/track"
)

// maxPatchBody bounds the size of a PATCH request body
const maxPatchBody = 1 << 20

// handleBraidRequest serves snapshots and subscriptions
func (h *Hub) handleBraidRequest(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Path

	// Add CORS headers if enabled
	if h.config.CORS.Enabled {
		h.addCORSHeaders(w)

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	res := h.resource(resourceID)
	if res == nil {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}

	// Set common headers
	w.Header().Set("Range-Request-Allow-Methods", "PATCH")
	w.Header().Set("Range-Request-Allow-Units", "json")
	w.Header().Set("Content-Type", "application/json")

	// Check if this is a subscription request
	if r.Header.Get("Subscribe") != "true" {
		res.mu.Lock()
		snapshot, version := res.snapshot, res.version
		res.mu.Unlock()

		w.Header().Set("Version", version)
		w.Header().Set("Parents", "")
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(snapshot); err != nil {
			h.logger.Debug("Error writing snapshot", "resource", resourceID, "err", err)
		}
		return
	}

	// Ensure we can flush the response
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	format := FormatTracked
	if r.Header.Get("Patch-Format") == FormatJSONPatch {
		format = FormatJSONPatch
	}

	// Set headers for streaming
	w.Header().Set("Subscribe", "true")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(braidproto.StatusSubscribed)

	// Register and send the initial state under the resource lock so no
	// published diff can slip in between
	res.mu.Lock()
	sub := h.AddSubscription(resourceID, format, w, flusher, res.snapshot, res.version)
	err := h.sendFullUpdate(sub, res.snapshot, res.version)
	res.mu.Unlock()
	if err != nil {
		h.logger.Warn("Error sending initial state", "subscription", sub.ID, "err", err)
	}

	// Keep the connection open until client disconnects
	<-r.Context().Done()

	// The publisher writes under the resource lock, so once the subscription
	// is removed under that lock nothing touches w again
	res.mu.Lock()
	h.RemoveSubscription(resourceID, sub.ID)
	res.mu.Unlock()
}

// handlePatch assigns a JSON object onto a resource. The change reaches
// subscribers on the next publish.
func (h *Hub) handlePatch(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Path

	if h.config.CORS.Enabled {
		h.addCORSHeaders(w)
	}

	if h.resource(resourceID) == nil {
		http.Error(w, "Resource not found", http.StatusNotFound)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxPatchBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("Error reading body: %v", err), http.StatusBadRequest)
		return
	}

	var values map[string]any
	if err := json.Unmarshal(data, &values); err != nil {
		http.Error(w, fmt.Sprintf("Body must be a JSON object: %v", err), http.StatusBadRequest)
		return
	}

	err = h.Update(resourceID, func(e *track.Entity) error {
		return track.Assign(e, values)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// addCORSHeaders adds CORS headers to the response
func (h *Hub) addCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", h.config.CORS.AllowOrigins)
	w.Header().Set("Access-Control-Allow-Methods", h.config.CORS.AllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", h.config.CORS.AllowHeaders)

	if h.config.CORS.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}

	w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", h.config.CORS.MaxAge))
}
