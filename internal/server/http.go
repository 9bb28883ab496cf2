package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coffersTech/filtq/internal/controller"
	"github.com/coffersTech/filtq/internal/history"
	"github.com/coffersTech/filtq/internal/model"
	"github.com/coffersTech/filtq/internal/pkg/edit"
	"github.com/coffersTech/filtq/internal/pkg/fql"
	"github.com/valyala/fastjson"
	"golang.org/x/crypto/bcrypt"
)

// UserSession represents a logged-in Web user session.
type UserSession struct {
	Token      string
	Username   string
	ExpireTime time.Time
}

// APIServer exposes the filter editing operations and saved-search
// management over HTTP.
type APIServer struct {
	metaStore   *controller.Store
	journal     *history.Journal
	webDir      string
	sessions    map[string]UserSession
	sessionsMu  sync.RWMutex
	srv         *http.Server
	parser      fastjson.ParserPool
	editCounter int64 // Monotonic counter for applied edits
}

func NewAPIServer(ms *controller.Store, journal *history.Journal, webDir string) *APIServer {
	return &APIServer{
		metaStore: ms,
		journal:   journal,
		webDir:    webDir,
		sessions:  make(map[string]UserSession),
	}
}

// Start runs the HTTP server.
func (s *APIServer) Start(addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/system/status", s.handleSystemStatus)
	mux.HandleFunc("/api/system/init", s.handleSystemInit)
	mux.Handle("/api/system/config", s.AuthMiddleware(http.HandlerFunc(s.handleSystemConfig)))

	// User management (SuperAdmin)
	mux.Handle("/api/users", s.AuthMiddleware(http.HandlerFunc(s.handleUsers)))
	mux.Handle("/api/users/", s.AuthMiddleware(http.HandlerFunc(s.handleUserItem)))

	// Token management (Authenticated)
	mux.Handle("/api/tokens", s.AuthMiddleware(http.HandlerFunc(s.handleTokens)))
	mux.Handle("/api/tokens/", s.AuthMiddleware(http.HandlerFunc(s.handleTokenItem)))

	// Stateless filter operations
	mux.Handle("/api/filter/edit", s.AuthMiddleware(http.HandlerFunc(s.handleFilterEdit)))
	mux.Handle("/api/filter/terms", s.AuthMiddleware(http.HandlerFunc(s.handleFilterTerms)))

	// Saved searches
	mux.Handle("/api/searches", s.AuthMiddleware(http.HandlerFunc(s.handleSearches)))
	mux.Handle("/api/searches/", s.AuthMiddleware(http.HandlerFunc(s.handleSearchItem)))

	mux.Handle("/api/stats", s.AuthMiddleware(http.HandlerFunc(s.handleStats)))

	// Static file serving for web directory
	if s.webDir != "" {
		fs := http.FileServer(http.Dir(s.webDir))
		mux.Handle("/", fs)
	}

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// AuthMiddleware checks for a valid token in the Authorization header.
func (s *APIServer) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		var token string
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			token = r.URL.Query().Get("token")
		}

		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="FiltQ"`)
			http.Error(w, "Unauthorized: Missing token", http.StatusUnauthorized)
			return
		}

		// Branch A: API key from meta
		if _, exists := s.metaStore.GetTokenByValue(token); exists {
			next.ServeHTTP(w, r)
			return
		}

		// Branch B: Web session
		s.sessionsMu.RLock()
		session, exists := s.sessions[token]
		s.sessionsMu.RUnlock()

		if exists {
			if time.Now().Before(session.ExpireTime) {
				user, exists := s.metaStore.GetUser(session.Username)
				if !exists {
					http.Error(w, "User no longer exists", http.StatusUnauthorized)
					return
				}

				if strings.HasPrefix(r.URL.Path, "/api/users") {
					if user.Role != "super_admin" {
						http.Error(w, "Forbidden: SuperAdmin required", http.StatusForbidden)
						return
					}
				}

				next.ServeHTTP(w, r)
				return
			}
			s.sessionsMu.Lock()
			delete(s.sessions, token)
			s.sessionsMu.Unlock()
		}

		w.Header().Set("WWW-Authenticate", `Bearer realm="FiltQ"`)
		http.Error(w, "Unauthorized: Invalid or expired token", http.StatusUnauthorized)
	})
}

// handleSystemStatus returns the system initialization status.
func (s *APIServer) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]bool{
		"initialized": s.metaStore.IsInitialized(),
	})
}

// handleSystemInit initializes the system with the first SuperAdmin.
func (s *APIServer) handleSystemInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.metaStore.IsInitialized() {
		http.Error(w, "System already initialized", http.StatusBadRequest)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password required", http.StatusBadRequest)
		return
	}

	if err := s.metaStore.InitializeSystem(req.Username, req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.createSession(w, req.Username, "super_admin")
}

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, exists := s.metaStore.GetUser(req.Username)
	if !exists {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	s.createSession(w, req.Username, user.Role)
}

func (s *APIServer) createSession(w http.ResponseWriter, username, role string) {
	b := make([]byte, 16)
	rand.Read(b)
	sessionToken := hex.EncodeToString(b)

	s.sessionsMu.Lock()
	s.sessions[sessionToken] = UserSession{
		Token:      sessionToken,
		Username:   username,
		ExpireTime: time.Now().Add(24 * time.Hour),
	}
	s.sessionsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"token":    sessionToken,
		"username": username,
		"role":     role,
	})
}

// sessionUser resolves the acting username from the request's bearer
// token, empty for API-key access.
func (s *APIServer) sessionUser(r *http.Request) string {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return s.sessions[token].Username
}

func (s *APIServer) handleSystemConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := s.metaStore.GetData()
		json.NewEncoder(w).Encode(data.Config)
		return
	}

	if r.Method == http.MethodPost {
		var cfg controller.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		if _, err := time.ParseDuration(cfg.JournalRetention); err != nil {
			http.Error(w, "Invalid retention duration format", http.StatusBadRequest)
			return
		}

		if err := s.metaStore.UpdateConfig(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		return
	}
}

func (s *APIServer) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := s.metaStore.GetData()
		// Strip hashes for security
		users := make([]controller.User, len(data.Users))
		for i, u := range data.Users {
			users[i] = u
			users[i].PasswordHash = ""
		}
		json.NewEncoder(w).Encode(users)
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		err := s.metaStore.AddUser(controller.User{
			Username:     req.Username,
			PasswordHash: string(hash),
			Role:         req.Role,
			CreatedAt:    time.Now().Unix(),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		return
	}
}

func (s *APIServer) handleUserItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	username := parts[len(parts)-1]

	if r.Method == http.MethodDelete {
		if err := s.metaStore.DeleteUser(username); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
}

func (s *APIServer) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := s.metaStore.GetData()
		json.NewEncoder(w).Encode(data.Tokens)
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}

		b := make([]byte, 16)
		rand.Read(b)
		tokenVal := "sk-" + hex.EncodeToString(b)

		idBytes := make([]byte, 8)
		rand.Read(idBytes)
		id := hex.EncodeToString(idBytes)

		err := s.metaStore.AddToken(controller.APIToken{
			ID:        id,
			Name:      req.Name,
			Token:     tokenVal,
			Type:      req.Type,
			CreatedBy: s.sessionUser(r),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": tokenVal, "id": id})
		return
	}
}

func (s *APIServer) handleTokenItem(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	id := parts[len(parts)-1]

	if r.Method == http.MethodDelete {
		if err := s.metaStore.DeleteToken(id); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
}

// parseEditBody reads an edit request from a JSON body.
func (s *APIServer) parseEditBody(r *http.Request) (model.EditRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return model.EditRequest{}, fmt.Errorf("failed to read body: %v", err)
	}
	defer r.Body.Close()

	p := s.parser.Get()
	defer s.parser.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return model.EditRequest{}, fmt.Errorf("invalid JSON: %v", err)
	}

	req := model.EditRequest{
		Query:   string(v.GetStringBytes("query")),
		Op:      string(v.GetStringBytes("op")),
		Field:   string(v.GetStringBytes("field")),
		Value:   string(v.GetStringBytes("value")),
		Negated: v.GetBool("negated"),
	}
	for _, f := range v.GetArray("fields") {
		if b, err := f.StringBytes(); err == nil {
			req.Fields = append(req.Fields, string(b))
		}
	}
	return req, nil
}

// applyEdit parses the query, applies the requested operation and
// renders the result. Parser rejections of synthesized clauses surface
// unchanged.
func applyEdit(req model.EditRequest) (string, error) {
	ast, err := fql.Parse(req.Query)
	if err != nil {
		return "", err
	}

	var out fql.Node
	switch req.Op {
	case model.OpDelete:
		fields := req.Fields
		if len(fields) == 0 {
			if req.Field == "" {
				return "", errors.New("delete requires a field")
			}
			fields = []string{req.Field}
		}
		out, err = edit.DeleteField(ast, fields...)
	case model.OpSet:
		if req.Field == "" {
			return "", errors.New("set requires a field")
		}
		out, err = edit.SetFilter(ast, req.Field, req.Value, req.Negated)
	case model.OpExtend:
		if req.Field == "" {
			return "", errors.New("extend requires a field")
		}
		out, err = edit.ExtendFilter(ast, req.Field, req.Value, req.Negated)
	default:
		return "", fmt.Errorf("unknown op %q", req.Op)
	}
	if err != nil {
		return "", err
	}
	return fql.Render(out), nil
}

// handleFilterEdit rewrites a query supplied in the request body and
// returns the new text without persisting anything.
func (s *APIServer) handleFilterEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseEditBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := applyEdit(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	atomic.AddInt64(&s.editCounter, 1)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"query": result})
}

// handleFilterTerms reports the terms a query binds to a field, split
// by negation polarity.
func (s *APIServer) handleFilterTerms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseEditBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Field == "" {
		http.Error(w, "field is required", http.StatusBadRequest)
		return
	}

	ast, err := fql.Parse(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	terms := edit.CollectTermsForField(ast, req.Field, req.Negated)
	if terms == nil {
		terms = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"field":   req.Field,
		"negated": req.Negated,
		"terms":   terms,
	})
}

func (s *APIServer) handleSearches(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.metaStore.ListSearches())
		return
	}

	if r.Method == http.MethodPost {
		var req struct {
			Name  string `json:"name"`
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		if _, err := fql.Parse(req.Query); err != nil {
			http.Error(w, fmt.Sprintf("invalid query: %v", err), http.StatusBadRequest)
			return
		}

		idBytes := make([]byte, 8)
		rand.Read(idBytes)
		search := controller.SavedSearch{
			ID:        hex.EncodeToString(idBytes),
			Name:      req.Name,
			Query:     req.Query,
			CreatedBy: s.sessionUser(r),
			CreatedAt: time.Now().Unix(),
			UpdatedAt: time.Now().Unix(),
		}
		if err := s.metaStore.AddSearch(search); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(search)
		return
	}
}

func (s *APIServer) handleSearchItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/searches/")

	if id, ok := strings.CutSuffix(rest, "/filter"); ok {
		s.handleSearchFilter(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		search, exists := s.metaStore.GetSearch(rest)
		if !exists {
			http.Error(w, "Search not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(search)
	case http.MethodDelete:
		if err := s.metaStore.DeleteSearch(rest); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSearchFilter applies an edit to a saved search's query,
// persists the rewrite and journals it.
func (s *APIServer) handleSearchFilter(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	search, exists := s.metaStore.GetSearch(id)
	if !exists {
		http.Error(w, "Search not found", http.StatusNotFound)
		return
	}

	req, err := s.parseEditBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Query = search.Query

	result, err := applyEdit(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.metaStore.UpdateSearchQuery(id, result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	atomic.AddInt64(&s.editCounter, 1)

	rec := model.EditRecord{
		Timestamp: time.Now().UnixNano(),
		SearchID:  id,
		Actor:     s.sessionUser(r),
		Op:        req.Op,
		Field:     req.Field,
		Fields:    req.Fields,
		Value:     req.Value,
		Negated:   req.Negated,
		Before:    search.Query,
		After:     result,
	}
	if err := s.journal.Append(rec); err != nil {
		log.Printf("Journal append failed: %v", err)
	} else if err := s.journal.Sync(); err != nil {
		log.Printf("Journal sync failed: %v", err)
	}

	search.Query = result
	search.UpdatedAt = time.Now().Unix()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(search)
}

// handleStats reports service counters.
func (s *APIServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.sessionsMu.RLock()
	sessions := len(s.sessions)
	s.sessionsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"edits_total":    atomic.LoadInt64(&s.editCounter),
		"searches_total": len(s.metaStore.ListSearches()),
		"sessions":       sessions,
	})
}
