package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/freeeve/archipelago/internal/auth"
	"github.com/freeeve/archipelago/internal/model"
	"github.com/freeeve/archipelago/internal/service"
	"github.com/freeeve/archipelago/pkg/archipelago"
)

// --- Mock Repositories ---

type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	if u, _ := m.FindByProviderID(ctx, provider, providerID); u != nil {
		u.DisplayName = displayName
		return u, nil
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.DisplayName = displayName
	return nil
}

type mockMatchRepo struct {
	mu      sync.Mutex
	seq     int
	matches map[string]*model.Match
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{matches: make(map[string]*model.Match)}
}

func (m *mockMatchRepo) copyOf(mt *model.Match) *model.Match {
	c := *mt
	c.Players = slices.Clone(mt.Players)
	c.Winners = slices.Clone(mt.Winners)
	return &c
}

func (m *mockMatchRepo) Create(_ context.Context, name, creatorID string, numPlayers int, expert bool) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	mt := &model.Match{
		ID:         fmt.Sprintf("match-%d", m.seq),
		Name:       name,
		CreatorID:  creatorID,
		Status:     model.MatchWaiting,
		NumPlayers: numPlayers,
		Expert:     expert,
		CreatedAt:  time.Now(),
	}
	m.matches[mt.ID] = mt
	return m.copyOf(mt), nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	return m.copyOf(mt), nil
}

func (m *mockMatchRepo) filter(keep func(*model.Match) bool) []model.Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Match
	for _, mt := range m.matches {
		if keep(mt) {
			out = append(out, *m.copyOf(mt))
		}
	}
	slices.SortFunc(out, func(a, b model.Match) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (m *mockMatchRepo) ListOpen(context.Context) ([]model.Match, error) {
	return m.filter(func(mt *model.Match) bool { return mt.Status == model.MatchWaiting }), nil
}

func (m *mockMatchRepo) ListByUser(_ context.Context, userID string) ([]model.Match, error) {
	return m.filter(func(mt *model.Match) bool { return mt.HasPlayer(userID) }), nil
}

func (m *mockMatchRepo) ListActive(context.Context) ([]model.Match, error) {
	return m.filter(func(mt *model.Match) bool { return mt.Status == model.MatchActive }), nil
}

func (m *mockMatchRepo) Join(_ context.Context, matchID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := m.matches[matchID]
	mt.Players = append(mt.Players, model.MatchPlayer{MatchID: matchID, UserID: userID, Seat: len(mt.Players), JoinedAt: time.Now()})
	return nil
}

func (m *mockMatchRepo) PlayerCount(_ context.Context, matchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matches[matchID].Players), nil
}

func (m *mockMatchRepo) Start(_ context.Context, matchID string, seed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := m.matches[matchID]
	now := time.Now()
	mt.Status, mt.Seed, mt.StartedAt = model.MatchActive, seed, &now
	return nil
}

func (m *mockMatchRepo) SetFinished(_ context.Context, matchID string, winners []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := m.matches[matchID]
	now := time.Now()
	mt.Status, mt.Winners, mt.FinishedAt = model.MatchFinished, winners, &now
	return nil
}

func (m *mockMatchRepo) Delete(_ context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.matches, matchID)
	return nil
}

type mockIntentRepo struct {
	mu      sync.Mutex
	intents map[string][]model.Intent
}

func (m *mockIntentRepo) Append(_ context.Context, in *model.Intent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.intents == nil {
		m.intents = make(map[string][]model.Intent)
	}
	in.ID = fmt.Sprintf("intent-%d", in.Seq)
	in.CreatedAt = time.Now()
	m.intents[in.MatchID] = append(m.intents[in.MatchID], *in)
	return nil
}

func (m *mockIntentRepo) ListByMatch(_ context.Context, matchID string) ([]model.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.intents[matchID]), nil
}

type mockCache struct{}

func (mockCache) SetSnapshot(context.Context, string, json.RawMessage) error { return nil }
func (mockCache) GetSnapshot(context.Context, string) (json.RawMessage, error) {
	return nil, nil
}
func (mockCache) SetTimer(context.Context, string, time.Time) error { return nil }
func (mockCache) ClearTimer(context.Context, string) error          { return nil }
func (mockCache) DeleteMatchData(context.Context, string) error     { return nil }

// --- Helpers ---

type fixture struct {
	matches *mockMatchRepo
	intents *mockIntentRepo
	match   *MatchHandler
	intent  *IntentHandler
}

func newFixture() *fixture {
	matches := newMockMatchRepo()
	intents := &mockIntentRepo{}
	play := service.NewPlayService(matches, intents, mockCache{}, nil, archipelago.DefaultRules(), time.Minute)
	return &fixture{
		matches: matches,
		intents: intents,
		match:   NewMatchHandler(service.NewMatchService(matches, play, nil)),
		intent:  NewIntentHandler(play),
	}
}

func reqWithUserID(method, path, body, userID string) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func call(h http.HandlerFunc, req *http.Request, id string) *httptest.ResponseRecorder {
	if id != "" {
		req.SetPathValue("id", id)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// startedMatch creates a two-player match for alice and bob and starts it.
func (f *fixture) startedMatch(t *testing.T) string {
	t.Helper()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"duel","num_players":2}`, "alice"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)

	if rec := call(f.match.JoinMatch, reqWithUserID(http.MethodPost, "/join", "", "bob"), m.ID); rec.Code != http.StatusOK {
		t.Fatalf("join: %d %s", rec.Code, rec.Body.String())
	}
	if rec := call(f.match.StartMatch, reqWithUserID(http.MethodPost, "/start", "", "alice"), m.ID); rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	return m.ID
}

func (f *fixture) state(t *testing.T, matchID string) archipelago.State {
	t.Helper()
	rec := call(f.intent.GetState, reqWithUserID(http.MethodGet, "/state", "", "alice"), matchID)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: %d %s", rec.Code, rec.Body.String())
	}
	var st archipelago.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

// --- User Handler Tests ---

func TestGetMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice"}
	h := NewUserHandler(repo, newMockMatchRepo())

	rec := call(h.GetMe, reqWithUserID(http.MethodGet, "/users/me", "", "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Alice" {
		t.Errorf("expected Alice, got %s", user.DisplayName)
	}
}

func TestGetMeNotFound(t *testing.T) {
	h := NewUserHandler(newMockUserRepo(), newMockMatchRepo())
	rec := call(h.GetMe, reqWithUserID(http.MethodGet, "/users/me", "", "nonexistent"), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestUpdateMe(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice"}
	h := NewUserHandler(repo, newMockMatchRepo())

	rec := call(h.UpdateMe, reqWithUserID(http.MethodPatch, "/users/me", `{"display_name":"  Bob "}`, "user-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user model.User
	json.Unmarshal(rec.Body.Bytes(), &user)
	if user.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %q", user.DisplayName)
	}
}

func TestUpdateMeRejects(t *testing.T) {
	tests := map[string]string{
		"empty name":   `{"display_name":""}`,
		"blank name":   `{"display_name":"   "}`,
		"long name":    `{"display_name":"` + strings.Repeat("x", 41) + `"}`,
		"invalid json": "not json",
	}
	for name, body := range tests {
		repo := newMockUserRepo()
		repo.users["user-1"] = &model.User{ID: "user-1"}
		rec := call(NewUserHandler(repo, newMockMatchRepo()).UpdateMe, reqWithUserID(http.MethodPatch, "/users/me", body, "user-1"), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestGetUser(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["user-2"] = &model.User{ID: "user-2", DisplayName: "Carol"}
	h := NewUserHandler(repo, newMockMatchRepo())

	if rec := call(h.GetUser, reqWithUserID(http.MethodGet, "/users/user-2", "", "user-1"), "user-2"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := call(h.GetUser, reqWithUserID(http.MethodGet, "/users/nope", "", "user-1"), "nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

// --- Match Handler Tests ---

func TestCreateMatch(t *testing.T) {
	f := newFixture()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"Test","num_players":3,"expert":true}`, "alice"), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.Name != "Test" || m.NumPlayers != 3 || !m.Expert {
		t.Errorf("unexpected match %+v", m)
	}
	if !m.HasPlayer("alice") {
		t.Error("creator should hold a seat")
	}
}

func TestCreateMatchDefaultsToTwoPlayers(t *testing.T) {
	f := newFixture()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"Test"}`, "alice"), "")
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)
	if m.NumPlayers != 2 {
		t.Errorf("expected 2 players, got %d", m.NumPlayers)
	}
}

func TestCreateMatchRejects(t *testing.T) {
	tests := map[string]string{
		"missing name":  `{"num_players":2}`,
		"too many":      `{"name":"x","num_players":5}`,
		"too few":       `{"name":"x","num_players":1}`,
		"invalid json":  `{`,
		"wrong type":    `{"name":3}`,
		"blank name":    `{"name":"   ","num_players":2}`,
		"negative seat": `{"name":"x","num_players":-1}`,
	}
	for name, body := range tests {
		f := newFixture()
		rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", body, "alice"), "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
}

func TestListMatches(t *testing.T) {
	f := newFixture()
	rec := call(f.match.ListMatches, reqWithUserID(http.MethodGet, "/matches", "", "alice"), "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rec.Body.String())
	}

	call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"a"}`, "alice"), "")
	call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"b"}`, "bob"), "")

	var open, mine []model.Match
	json.Unmarshal(call(f.match.ListMatches, reqWithUserID(http.MethodGet, "/matches", "", "alice"), "").Body.Bytes(), &open)
	json.Unmarshal(call(f.match.ListMatches, reqWithUserID(http.MethodGet, "/matches?filter=mine", "", "alice"), "").Body.Bytes(), &mine)
	if len(open) != 2 {
		t.Errorf("expected 2 open matches, got %d", len(open))
	}
	if len(mine) != 1 || mine[0].Name != "a" {
		t.Errorf("expected alice's match only, got %+v", mine)
	}
}

func TestMatchLifecycleErrors(t *testing.T) {
	f := newFixture()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"duel"}`, "alice"), "")
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)

	steps := []struct {
		name string
		h    http.HandlerFunc
		user string
		id   string
		want int
	}{
		{"get missing", f.match.GetMatch, "alice", "nope", http.StatusNotFound},
		{"join missing", f.match.JoinMatch, "bob", "nope", http.StatusNotFound},
		{"rejoin", f.match.JoinMatch, "alice", m.ID, http.StatusConflict},
		{"start short", f.match.StartMatch, "alice", m.ID, http.StatusConflict},
		{"join", f.match.JoinMatch, "bob", m.ID, http.StatusOK},
		{"join full", f.match.JoinMatch, "carol", m.ID, http.StatusConflict},
		{"start by guest", f.match.StartMatch, "bob", m.ID, http.StatusForbidden},
		{"delete by guest", f.match.DeleteMatch, "bob", m.ID, http.StatusForbidden},
		{"start", f.match.StartMatch, "alice", m.ID, http.StatusOK},
		{"start twice", f.match.StartMatch, "alice", m.ID, http.StatusConflict},
		{"delete active", f.match.DeleteMatch, "alice", m.ID, http.StatusConflict},
		{"get", f.match.GetMatch, "carol", m.ID, http.StatusOK},
	}
	for _, s := range steps {
		rec := call(s.h, reqWithUserID(http.MethodPost, "/", "", s.user), s.id)
		if rec.Code != s.want {
			t.Errorf("%s: expected %d, got %d: %s", s.name, s.want, rec.Code, rec.Body.String())
		}
	}
}

func TestDeleteMatch(t *testing.T) {
	f := newFixture()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"duel"}`, "alice"), "")
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)

	if rec := call(f.match.DeleteMatch, reqWithUserID(http.MethodDelete, "/", "", "alice"), m.ID); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := call(f.match.GetMatch, reqWithUserID(http.MethodGet, "/", "", "alice"), m.ID); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

// --- Intent Handler Tests ---

func TestSubmitIntentPlaysCard(t *testing.T) {
	f := newFixture()
	id := f.startedMatch(t)
	current := f.state(t, id).Current

	rec := call(f.intent.SubmitIntent, reqWithUserID(http.MethodPost, "/intents", `{"kind":"play_card","card":5}`, current), id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Seq   int               `json:"seq"`
		State archipelago.State `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Seq != 1 {
		t.Errorf("expected seq 1, got %d", res.Seq)
	}
	if res.State.Current == current {
		t.Error("turn should pass to the other player")
	}

	var journal []model.Intent
	json.Unmarshal(call(f.intent.ListIntents, reqWithUserID(http.MethodGet, "/intents", "", "bob"), id).Body.Bytes(), &journal)
	if len(journal) != 1 || journal[0].Kind != "play_card" || journal[0].UserID != current {
		t.Errorf("unexpected journal %+v", journal)
	}
}

func TestSubmitIntentErrors(t *testing.T) {
	f := newFixture()
	id := f.startedMatch(t)
	current := f.state(t, id).Current
	other := "alice"
	if current == "alice" {
		other = "bob"
	}

	tests := []struct {
		name string
		id   string
		user string
		body string
		want int
	}{
		{"bad json", id, current, `{`, http.StatusBadRequest},
		{"unknown kind", id, current, `{"kind":"resign"}`, http.StatusBadRequest},
		{"missing card", id, current, `{"kind":"play_card"}`, http.StatusBadRequest},
		{"not seated", id, "carol", `{"kind":"play_card","card":3}`, http.StatusForbidden},
		{"missing match", "nope", current, `{"kind":"play_card","card":3}`, http.StatusNotFound},
		{"out of turn", id, other, `{"kind":"play_card","card":3}`, http.StatusUnprocessableEntity},
		{"wrong phase", id, current, `{"kind":"pick_cloud","cloud":0}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := call(f.intent.SubmitIntent, reqWithUserID(http.MethodPost, "/intents", tt.body, tt.user), tt.id)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d: %s", tt.name, tt.want, rec.Code, rec.Body.String())
		}
	}

	var journal []model.Intent
	json.Unmarshal(call(f.intent.ListIntents, reqWithUserID(http.MethodGet, "/intents", "", "bob"), id).Body.Bytes(), &journal)
	if len(journal) != 0 {
		t.Errorf("rejected intents should not be journaled, got %d", len(journal))
	}
}

func TestSubmitIntentTooLarge(t *testing.T) {
	f := newFixture()
	id := f.startedMatch(t)
	body := `{"kind":"pass","pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := call(f.intent.SubmitIntent, reqWithUserID(http.MethodPost, "/intents", body, "alice"), id)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
}

func TestGetStateWaitingMatch(t *testing.T) {
	f := newFixture()
	rec := call(f.match.CreateMatch, reqWithUserID(http.MethodPost, "/matches", `{"name":"duel"}`, "alice"), "")
	var m model.Match
	json.Unmarshal(rec.Body.Bytes(), &m)

	if rec := call(f.intent.GetState, reqWithUserID(http.MethodGet, "/state", "", "alice"), m.ID); rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if rec := call(f.intent.GetState, reqWithUserID(http.MethodGet, "/state", "", "alice"), "nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := call(f.intent.ListIntents, reqWithUserID(http.MethodGet, "/intents", "", "alice"), "nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetStateReportsSeats(t *testing.T) {
	f := newFixture()
	id := f.startedMatch(t)
	st := f.state(t, id)
	if st.Phase != archipelago.PhasePlanning || st.Round != 1 {
		t.Errorf("expected round 1 planning, got round %d %v", st.Round, st.Phase)
	}
	if len(st.Players) != 2 || st.Players[0].ID != "alice" || st.Players[1].ID != "bob" {
		t.Errorf("expected seats in join order, got %+v", st.Players)
	}
}

// --- Auth Handler Tests ---

func TestRefreshTokenValid(t *testing.T) {
	mgr := auth.NewJWTManager("test-secret")
	h := NewAuthHandler(nil, mgr, newMockUserRepo())
	pair, _ := mgr.GenerateTokenPair("user-1")

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"`+pair.RefreshToken+`"}`))
	rec := call(h.RefreshToken, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tokens auth.TokenPair
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	if _, err := mgr.ValidateToken(tokens.AccessToken, auth.TokenAccess); err != nil {
		t.Errorf("new access token invalid: %v", err)
	}
}

func TestRefreshTokenRejects(t *testing.T) {
	mgr := auth.NewJWTManager("test-secret")
	h := NewAuthHandler(nil, mgr, newMockUserRepo())
	access, _ := mgr.GenerateAccessToken("user-1")

	tests := map[string]struct {
		body string
		want int
	}{
		"garbage token": {`{"refresh_token":"invalid"}`, http.StatusUnauthorized},
		"access token":  {`{"refresh_token":"` + access + `"}`, http.StatusUnauthorized},
		"bad body":      {`not json`, http.StatusBadRequest},
	}
	for name, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(tt.body))
		if rec := call(h.RefreshToken, req, ""); rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", name, tt.want, rec.Code)
		}
	}
}

func TestDevLogin(t *testing.T) {
	repo := newMockUserRepo()
	mgr := auth.NewJWTManager("test-secret")

	t.Setenv("DEV_MODE", "false")
	off := NewAuthHandler(nil, mgr, repo)
	if rec := call(off.DevLogin, httptest.NewRequest(http.MethodGet, "/auth/dev?name=alice", nil), ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 outside dev mode, got %d", rec.Code)
	}

	t.Setenv("DEV_MODE", "true")
	h := NewAuthHandler(nil, mgr, repo)
	rec := call(h.DevLogin, httptest.NewRequest(http.MethodGet, "/auth/dev?name=alice", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tokens auth.TokenPair
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	claims, err := mgr.ValidateToken(tokens.AccessToken, auth.TokenAccess)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if repo.users[claims.UserID].DisplayName != "alice" {
		t.Errorf("expected alice, got %+v", repo.users[claims.UserID])
	}

	call(h.DevLogin, httptest.NewRequest(http.MethodGet, "/auth/dev", nil), "")
	if len(repo.users) != 2 {
		t.Fatalf("expected a guest user, got %d users", len(repo.users))
	}
	for _, u := range repo.users {
		if u.DisplayName != "alice" && !strings.HasPrefix(u.DisplayName, "guest-") {
			t.Errorf("unexpected guest name %q", u.DisplayName)
		}
	}
}

func TestEnableDevLogin(t *testing.T) {
	t.Setenv("DEV_MODE", "")
	h := NewAuthHandler(nil, auth.NewJWTManager("s"), newMockUserRepo()).EnableDevLogin()
	if rec := call(h.DevLogin, httptest.NewRequest(http.MethodGet, "/auth/dev?name=bot", nil), ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGoogleCallbackChecksState(t *testing.T) {
	h := NewAuthHandler(auth.NewGoogleOAuth("id", "secret", "http://localhost/cb"), auth.NewJWTManager("s"), newMockUserRepo())

	rec := call(h.GoogleLogin, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil), "")
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != oauthStateCookie {
		t.Fatalf("expected state cookie, got %+v", cookies)
	}
	if !strings.Contains(rec.Header().Get("Location"), "state="+cookies[0].Value) {
		t.Errorf("redirect does not carry the state: %s", rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=forged&code=x", nil)
	req.AddCookie(cookies[0])
	if rec := call(h.GoogleCallback, req, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for mismatched state, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?state="+cookies[0].Value, nil)
	req.AddCookie(cookies[0])
	if rec := call(h.GoogleCallback, req, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing code, got %d", rec.Code)
	}
}

func TestGoogleCallbackSignsIn(t *testing.T) {
	idp := http.NewServeMux()
	idp.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at","token_type":"Bearer"}`))
	})
	idp.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"g-1","name":"Grace"}`))
	})
	srv := httptest.NewServer(idp)
	defer srv.Close()

	provider := auth.NewOAuthProvider("google", &oauth2.Config{
		ClientID: "id",
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}, srv.URL+"/userinfo")
	repo := newMockUserRepo()
	mgr := auth.NewJWTManager("s")
	h := NewAuthHandler(provider, mgr, repo)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=st&code=c", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "st"})
	rec := call(h.GoogleCallback, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var tokens auth.TokenPair
	json.Unmarshal(rec.Body.Bytes(), &tokens)
	claims, err := mgr.ValidateToken(tokens.AccessToken, auth.TokenAccess)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	u := repo.users[claims.UserID]
	if u == nil || u.Provider != "google" || u.ProviderID != "g-1" || u.DisplayName != "Grace" {
		t.Errorf("unexpected user %+v", u)
	}
}

func TestGetRecord(t *testing.T) {
	ctx := context.Background()
	matches := newMockMatchRepo()
	seat := func(status string, winners ...string) {
		m, _ := matches.Create(ctx, "m", "alice", 2, false)
		matches.Join(ctx, m.ID, "alice")
		matches.Join(ctx, m.ID, "bob")
		if status == model.MatchWaiting {
			return
		}
		matches.Start(ctx, m.ID, 1)
		if status == model.MatchFinished {
			matches.SetFinished(ctx, m.ID, winners)
		}
	}
	seat(model.MatchFinished, "alice")
	seat(model.MatchFinished, "bob")
	seat(model.MatchFinished)
	seat(model.MatchActive)
	seat(model.MatchWaiting)

	h := NewUserHandler(newMockUserRepo(), matches)
	req := reqWithUserID(http.MethodGet, "/users/me/record", "", "alice")
	req.SetPathValue("id", "me")
	rec := call(h.GetRecord, req, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Record
	json.Unmarshal(rec.Body.Bytes(), &got)
	if want := (Record{Played: 3, Won: 1, Drawn: 1, Active: 1}); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	req = reqWithUserID(http.MethodGet, "/users/carol/record", "", "alice")
	req.SetPathValue("id", "carol")
	rec = call(h.GetRecord, req, "")
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got != (Record{}) {
		t.Errorf("expected an empty record, got %+v", got)
	}
}
