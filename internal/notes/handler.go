/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package notes

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tomoncle/packwork/localize"
	"github.com/tomoncle/packwork/logging"
	"github.com/tomoncle/packwork/pack"
	"github.com/tomoncle/packwork/types"
	"github.com/tomoncle/packwork/unitofwork"
)

const (
	defaultPageSize       = 20
	maxPageSize           = 100
	defaultMaxTitleLength = 200
)

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var log = logging.Named("NOTES")

type handler struct{}

type notePayload struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Pinned bool     `json:"pinned"`
	Tags   []string `json:"tags"`
}

func settings(r *http.Request) Settings {
	s := Settings{PageSize: defaultPageSize, MaxTitleLength: defaultMaxTitleLength}
	if cfg, err := pack.FromRequest[*pack.Configuration[Settings]](r); err == nil {
		v := cfg.Value()
		if v.PageSize > 0 {
			s.PageSize = v.PageSize
		}
		if v.MaxTitleLength > 0 {
			s.MaxTitleLength = v.MaxTitleLength
		}
	}
	return s
}

// message localizes key when the host runs with localization.
func message(r *http.Request, key string, args ...interface{}) string {
	f, err := pack.FromRequest[*localize.Factory](r)
	if err != nil {
		return key
	}
	return f.Create(Name).Get(r.Context(), key, args...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h handler) uow(w http.ResponseWriter, r *http.Request) (unitofwork.UnitOfWork, bool) {
	u, err := pack.FromRequest[unitofwork.UnitOfWork](r)
	if err != nil {
		h.serverError(w, r, err)
		return nil, false
	}
	return u, true
}

// serverError logs err and answers with the shared errors.internal message.
func (h handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error("notes request failed", "path", r.URL.Path, "error", err)
	msg := message(r, "errors.internal")
	if msg == "errors.internal" {
		msg = http.StatusText(http.StatusInternalServerError)
	}
	writeError(w, http.StatusInternalServerError, msg)
}

func (h handler) list(w http.ResponseWriter, r *http.Request) {
	u, ok := h.uow(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, err := strconv.Atoi(q.Get("size"))
	if err != nil {
		size = settings(r).PageSize
	}
	size = min(size, maxPageSize)

	var clauses []string
	var args []interface{}
	if term := strings.TrimSpace(q.Get("q")); term != "" {
		clauses = append(clauses, "title LIKE ?")
		args = append(args, "%"+term+"%")
	}
	if tag := normalizeTag(q.Get("tag")); tag != "" {
		clauses = append(clauses, "tags LIKE ? ESCAPE '!'")
		args = append(args, tagPattern(tag))
	}
	if pinned, err := strconv.ParseBool(q.Get("pinned")); err == nil {
		clauses = append(clauses, "pinned = ?")
		args = append(args, pinned)
	}
	var filter *types.QueryFilter
	if len(clauses) > 0 {
		filter = types.NewQueryFilter(strings.Join(clauses, " AND "), args...)
	}

	req := types.NewPageRequest(page, size, filter, []string{
		types.OrderBy("pinned", false),
		types.OrderBy("created_at", false),
	})
	result, err := unitofwork.GetRepository[Note](u).GetPaged(r.Context(), req)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h handler) get(w http.ResponseWriter, r *http.Request) {
	u, ok := h.uow(w, r)
	if !ok {
		return
	}
	note, found := h.load(w, r, u)
	if found {
		writeJSON(w, http.StatusOK, note)
	}
}

// load fetches the note named by the id path value, writing the error
// response when it cannot.
func (h handler) load(w http.ResponseWriter, r *http.Request, u unitofwork.UnitOfWork) (*Note, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, message(r, "notes.invalid_id", id))
		return nil, false
	}
	note, err := unitofwork.GetRepository[Note](u).GetByID(r.Context(), id)
	if err != nil {
		h.serverError(w, r, err)
		return nil, false
	}
	if note == nil {
		writeError(w, http.StatusNotFound, message(r, "notes.not_found", id))
		return nil, false
	}
	return note, true
}

func (h handler) decode(w http.ResponseWriter, r *http.Request) (notePayload, bool) {
	var p notePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, message(r, "notes.invalid_body"))
		return p, false
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		writeError(w, http.StatusBadRequest, message(r, "notes.title_required"))
		return p, false
	}
	if limit := settings(r).MaxTitleLength; len([]rune(p.Title)) > limit {
		writeError(w, http.StatusBadRequest, message(r, "notes.title_too_long", limit))
		return p, false
	}
	p.Tags = normalizeTags(p.Tags)
	return p, true
}

// tagPattern matches tag as a whole element of the JSON encoded tags column.
func tagPattern(tag string) string {
	quoted, _ := json.Marshal(tag)
	return "%" + likeEscaper.Replace(string(quoted)) + "%"
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(tag), `"%`))
}

// normalizeTags lowercases tags and drops blanks and duplicates, keeping
// first-seen order.
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalizeTag(t); t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func (h handler) create(w http.ResponseWriter, r *http.Request) {
	u, ok := h.uow(w, r)
	if !ok {
		return
	}
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	note := &Note{Title: p.Title, Body: p.Body, Pinned: p.Pinned, Tags: types.NewJSON(p.Tags)}
	if err := unitofwork.GetRepository[Note](u).Add(note); err != nil {
		h.serverError(w, r, err)
		return
	}
	if _, err := u.Commit(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": message(r, "notes.created", note.Title),
		"note":    note,
	})
}

func (h handler) update(w http.ResponseWriter, r *http.Request) {
	u, ok := h.uow(w, r)
	if !ok {
		return
	}
	note, ok := h.load(w, r, u)
	if !ok {
		return
	}
	p, ok := h.decode(w, r)
	if !ok {
		return
	}
	note.Title, note.Body, note.Pinned = p.Title, p.Body, p.Pinned
	note.Tags = types.NewJSON(p.Tags)
	if err := unitofwork.GetRepository[Note](u).Update(note); err != nil {
		h.serverError(w, r, err)
		return
	}
	if _, err := u.Commit(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": message(r, "notes.updated"),
		"note":    note,
	})
}

func (h handler) remove(w http.ResponseWriter, r *http.Request) {
	u, ok := h.uow(w, r)
	if !ok {
		return
	}
	note, ok := h.load(w, r, u)
	if !ok {
		return
	}
	if err := unitofwork.GetRepository[Note](u).Delete(note.ID); err != nil {
		h.serverError(w, r, err)
		return
	}
	if _, err := u.Commit(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message(r, "notes.deleted")})
}
