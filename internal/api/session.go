package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/ingest"
	"github.com/lox/stockcast/internal/models"
)

const (
	sessionCookie = "stockcast_session"
	sessionMaxAge = 7 * 24 * time.Hour
	maxSessions   = 10000
)

var errEndBeforeStart = errors.New("end date is before start date")

// sessionStore remembers each session's last filter selection.
type sessionStore struct {
	mu      sync.Mutex
	filters map[string]accuracy.Filter
}

func newSessionStore() *sessionStore {
	return &sessionStore{filters: make(map[string]accuracy.Filter)}
}

func (ss *sessionStore) get(id string) accuracy.Filter {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.filters[id]
}

func (ss *sessionStore) set(id string, f accuracy.Filter) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.filters[id]; !ok && len(ss.filters) >= maxSessions {
		ss.filters = make(map[string]accuracy.Filter)
	}
	ss.filters[id] = f
}

// sessionID returns the caller's session, issuing a cookie for new visitors.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// sessionFilter merges query parameters over the session's remembered filter
// and remembers the result.
func (s *Server) sessionFilter(w http.ResponseWriter, r *http.Request) (accuracy.Filter, error) {
	id := sessionID(w, r)
	f, err := parseFilter(r.URL.Query(), s.sessions.get(id))
	if err != nil {
		return accuracy.Filter{}, err
	}
	s.sessions.set(id, f)
	return f, nil
}

// parseFilter applies warehouse, model, start and end parameters to base. A
// present but empty parameter clears that selector.
func parseFilter(q url.Values, base accuracy.Filter) (accuracy.Filter, error) {
	f := base
	if q.Has("warehouse") {
		f.Location = selector(q.Get("warehouse"))
	}
	if q.Has("model") {
		f.Model = selector(q.Get("model"))
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"start", &f.Start},
		{"end", &f.End},
	} {
		if !q.Has(p.name) {
			continue
		}
		v := strings.TrimSpace(q.Get(p.name))
		if v == "" {
			*p.dst = time.Time{}
			continue
		}
		t, err := ingest.ParseDate(v)
		if err != nil {
			return accuracy.Filter{}, &models.MalformedInputError{Source: "query", Column: p.name, Value: v, Err: err}
		}
		*p.dst = t
	}
	if !f.Start.IsZero() && !f.End.IsZero() && f.End.Before(f.Start) {
		return accuracy.Filter{}, &models.MalformedInputError{
			Source: "query",
			Column: "end",
			Value:  f.End.Format(dateLayout),
			Err:    errEndBeforeStart,
		}
	}
	return f, nil
}

func selector(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, accuracy.All) {
		return ""
	}
	return models.NormalizeName(v)
}

// query renders a filter back into URL parameters.
func query(f accuracy.Filter) string {
	q := url.Values{}
	if f.Location != "" {
		q.Set("warehouse", f.Location)
	}
	if f.Model != "" {
		q.Set("model", f.Model)
	}
	if !f.Start.IsZero() {
		q.Set("start", f.Start.Format(dateLayout))
	}
	if !f.End.IsZero() {
		q.Set("end", f.End.Format(dateLayout))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
