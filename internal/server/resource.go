// ABOUTME: Generic CRUD handlers shared by the todo and milestone routes
// ABOUTME: Validates bodies, maps store errors to status codes and replays idempotent creates

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/2389/airway-api/internal/auth"
	"github.com/2389/airway-api/internal/dedupe"
	"github.com/2389/airway-api/internal/store"
	"github.com/2389/airway-api/internal/validation"
)

// Idempotency headers
const (
	idempotencyKeyHeader     = "Idempotency-Key"
	idempotentReplayedHeader = "Idempotent-Replayed"
)

// idempotentResponse is a remembered POST result. A zero Status marks a
// request that is still being processed. Fingerprint identifies the subject
// and body the key was first used with.
type idempotentResponse struct {
	Status      int
	Body        []byte
	Fingerprint uint64
}

// requestFingerprint hashes the authenticated subject and the request body.
func requestFingerprint(subject string, body []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(subject)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(body)
	return d.Sum64()
}

// resource serves one record kind under a path prefix.
type resource[F any] struct {
	srv     *Server
	kind    string // capitalised, used in messages: "Todo"
	schema  string
	store   store.Store[F]
	decode  func(body []byte) (F, error)
	present func(rec *store.Record[F]) any
	idem    *dedupe.Cache[idempotentResponse]
	logger  *slog.Logger
}

// register adds the collection and item routes under prefix. Writes go
// through protect.
func (res *resource[F]) register(mux *http.ServeMux, prefix string, protect func(http.HandlerFunc) http.Handler) {
	item := prefix + "/{id}"

	mux.HandleFunc("GET "+prefix, res.handleList)
	mux.Handle("POST "+prefix, protect(res.handleCreate))
	mux.HandleFunc("GET "+item, res.handleGet)
	mux.Handle("PUT "+item, protect(res.handleUpdate))
	mux.Handle("PATCH "+item, protect(res.handlePatch))
	mux.Handle("DELETE "+item, protect(res.handleDelete))
}

// handleList handles GET {prefix}.
func (res *resource[F]) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := res.store.List(r.Context())
	if err != nil {
		res.internalError(w, "list", err)
		return
	}

	out := make([]any, len(records))
	for i, rec := range records {
		out[i] = res.present(rec)
	}
	res.srv.writeJSON(w, r, http.StatusOK, out)
}

// handleCreate handles POST {prefix}, honouring Idempotency-Key.
func (res *resource[F]) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, status, failure := res.readBody(r)
	if failure != nil {
		res.srv.writeJSON(w, r, status, failure)
		return
	}

	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		status, payload := res.create(r, body)
		res.srv.writeJSON(w, r, status, payload)
		return
	}

	fingerprint := requestFingerprint(auth.SubjectFromContext(r.Context()), body)

	// Finished creates replay under the read lock
	if prev, ok := res.idem.Lookup(key); ok && prev.Status != 0 {
		res.replay(w, r, key, prev, fingerprint)
		return
	}

	prev, loaded := res.idem.LoadOrStore(key, idempotentResponse{Fingerprint: fingerprint})
	if loaded {
		res.replay(w, r, key, prev, fingerprint)
		return
	}

	status, payload := res.create(r, body)
	encoded, err := json.Marshal(payload)
	if err != nil {
		res.idem.Forget(key)
		res.internalError(w, "encode", err)
		return
	}

	// Only successful creates are replayed; a failed one may be retried
	if status < http.StatusMultipleChoices {
		res.idem.Remember(key, idempotentResponse{Status: status, Body: encoded, Fingerprint: fingerprint})
	} else {
		res.idem.Forget(key)
	}
	writeBody(w, r, status, encoded)
}

// replay answers a POST whose Idempotency-Key has been seen before.
func (res *resource[F]) replay(w http.ResponseWriter, r *http.Request, key string, prev idempotentResponse, fingerprint uint64) {
	switch {
	case prev.Fingerprint != fingerprint:
		res.logger.Warn("idempotency key reused with a different request", "key", key)
		sendJSONError(w, http.StatusUnprocessableEntity, "Idempotency-Key was already used for a different request")
	case prev.Status == 0:
		sendJSONError(w, http.StatusConflict, "A request with this Idempotency-Key is still in progress")
	default:
		res.logger.Debug("replaying idempotent create", "key", key, "status", prev.Status)
		w.Header().Set(idempotentReplayedHeader, "true")
		writeBody(w, r, prev.Status, prev.Body)
	}
}

// create validates body and stores a new record.
func (res *resource[F]) create(r *http.Request, body []byte) (int, any) {
	fields, status, failure := res.parseFields(body)
	if failure != nil {
		return status, failure
	}

	rec, err := res.store.Create(r.Context(), fields)
	if err != nil {
		res.logger.Error("failed to create record", "error", err)
		return http.StatusInternalServerError, errorBody{Detail: "internal server error"}
	}

	res.logger.Info("record created", "id", rec.ID)
	return http.StatusOK, res.present(rec)
}

// handleGet handles GET {prefix}/{id}.
func (res *resource[F]) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	rec, err := res.store.Get(r.Context(), id)
	if err != nil {
		res.storeError(w, "get", err)
		return
	}
	res.srv.writeJSON(w, r, http.StatusOK, res.present(rec))
}

// handleUpdate handles PUT {prefix}/{id}. The body replaces every mutable
// field; omitted fields revert to their defaults.
func (res *resource[F]) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	fields, status, failure := res.readFields(r)
	if failure != nil {
		res.srv.writeJSON(w, r, status, failure)
		return
	}

	var before *store.Record[F]
	if res.logger.Enabled(r.Context(), slog.LevelDebug) {
		before, _ = res.store.Get(r.Context(), id)
	}

	rec, err := res.store.Update(r.Context(), id, fields)
	if err != nil {
		res.storeError(w, "update", err)
		return
	}

	res.logChanges(r, before, rec)
	res.srv.writeJSON(w, r, http.StatusOK, res.present(rec))
}

// handlePatch handles PATCH {prefix}/{id}. The patch is applied to the
// current JSON representation and the result must validate like a PUT body.
func (res *resource[F]) handlePatch(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	patch, status, failure := res.readBody(r)
	if failure != nil {
		res.srv.writeJSON(w, r, status, failure)
		return
	}

	current, err := res.store.Get(r.Context(), id)
	if err != nil {
		res.storeError(w, "get", err)
		return
	}

	doc, err := json.Marshal(res.present(current))
	if err != nil {
		res.internalError(w, "encode", err)
		return
	}

	patched, err := applyPatch(r.Header.Get("Content-Type"), doc, patch)
	if errors.Is(err, errUnsupportedPatchType) {
		sendJSONError(w, http.StatusUnsupportedMediaType, fmt.Sprintf(
			"Unsupported patch content type %q, use %s or %s",
			r.Header.Get("Content-Type"), mediaMergePatch, mediaJSONPatch))
		return
	}
	if err != nil {
		sendJSONError(w, http.StatusUnprocessableEntity, []validation.Detail{{
			Loc:  []string{"body"},
			Msg:  err.Error(),
			Type: "patch_invalid",
		}})
		return
	}

	fields, status, failure := res.parseFields(patched)
	if failure != nil {
		res.srv.writeJSON(w, r, status, failure)
		return
	}

	rec, err := res.store.Update(r.Context(), id, fields)
	if err != nil {
		res.storeError(w, "update", err)
		return
	}

	res.logChanges(r, current, rec)
	res.srv.writeJSON(w, r, http.StatusOK, res.present(rec))
}

// handleDelete handles DELETE {prefix}/{id}.
func (res *resource[F]) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	if err := res.store.Delete(r.Context(), id); err != nil {
		res.storeError(w, "delete", err)
		return
	}

	res.logger.Info("record deleted", "id", id)
	res.srv.writeJSON(w, r, http.StatusOK, MessageResponse{Message: res.kind + " deleted successfully"})
}

// readBody reads the request body within the configured size limit. On
// failure it returns the status and payload to send.
func (res *resource[F]) readBody(r *http.Request) ([]byte, int, any) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, res.srv.config.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, errorBody{
				Detail: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return nil, http.StatusBadRequest, errorBody{Detail: "could not read request body"}
	}
	return body, 0, nil
}

// readFields reads, validates and decodes the request body.
func (res *resource[F]) readFields(r *http.Request) (F, int, any) {
	body, status, failure := res.readBody(r)
	if failure != nil {
		var zero F
		return zero, status, failure
	}
	return res.parseFields(body)
}

// parseFields validates body against the resource schema and decodes it.
func (res *resource[F]) parseFields(body []byte) (F, int, any) {
	var zero F

	if err := res.srv.validator.Validate(res.schema, body); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return zero, http.StatusUnprocessableEntity, errorBody{Detail: verr.Details}
		}
		res.logger.Error("validator failed", "error", err)
		return zero, http.StatusInternalServerError, errorBody{Detail: "internal server error"}
	}

	fields, err := res.decode(body)
	if err != nil {
		return zero, http.StatusUnprocessableEntity, errorBody{Detail: []validation.Detail{{
			Loc:  []string{"body"},
			Msg:  err.Error(),
			Type: "value_error",
		}}}
	}
	return fields, 0, nil
}

// storeError maps a store error to a response.
func (res *resource[F]) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		sendJSONError(w, http.StatusNotFound, res.kind+" not found")
		return
	}
	res.internalError(w, op, err)
}

func (res *resource[F]) internalError(w http.ResponseWriter, op string, err error) {
	res.logger.Error("store operation failed", "op", op, "error", err)
	sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// logChanges logs the field-level diff of an update at debug level.
func (res *resource[F]) logChanges(r *http.Request, before, after *store.Record[F]) {
	if before == nil || !res.logger.Enabled(r.Context(), slog.LevelDebug) {
		return
	}

	oldDoc, err1 := json.Marshal(res.present(before))
	newDoc, err2 := json.Marshal(res.present(after))
	if err := errors.Join(err1, err2); err != nil {
		res.logger.Debug("could not diff update", "id", after.ID, "error", err)
		return
	}

	changes, err := describeChanges(oldDoc, newDoc)
	if err != nil {
		res.logger.Debug("could not diff update", "id", after.ID, "error", err)
		return
	}
	res.logger.Debug("record updated", "id", after.ID, "changes", changes,
		"request_id", RequestIDFromContext(r.Context()))
}

// parseID reads the {id} path value, answering 422 when it isn't an integer.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		sendJSONError(w, http.StatusUnprocessableEntity, invalidID(raw))
		return 0, false
	}
	return id, true
}

// decodeJSON unmarshals a validated request body and converts it to fields.
func decodeJSON[R interface{ Fields() F }, F any](body []byte) (F, error) {
	var req R
	if err := json.Unmarshal(body, &req); err != nil {
		var zero F
		return zero, err
	}
	return req.Fields(), nil
}
