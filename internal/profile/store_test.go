package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/foodscan/internal/config"
	"github.com/example/foodscan/internal/session"
	"github.com/example/foodscan/internal/transport"
)

// testEnv wires a store against a fake service with an authenticated session.
type testEnv struct {
	store         *Store
	session       *session.Manager
	persistStatus int
	persistBody   string
	persisted     [][]session.Allergy
}

func newTestEnv(t *testing.T, serverAllergies []session.Allergy) *testEnv {
	t.Helper()
	env := &testEnv{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user":        session.Identity{Email: gofakeit.Email()},
			"allergies":   serverAllergies,
			"total_scans": 0,
		})
	})
	mux.HandleFunc("POST /profile/allergies", func(w http.ResponseWriter, r *http.Request) {
		if env.persistStatus != 0 {
			w.WriteHeader(env.persistStatus)
			fmt.Fprint(w, env.persistBody)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Allergies []session.Allergy `json:"allergies"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		env.persisted = append(env.persisted, req.Allergies)
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := transport.New(config.APIConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, nil, nil)
	require.NoError(t, err)
	sess := session.NewManager(client, &session.MemoryStore{}, zap.NewNop())
	client.SetTokenSource(sess)
	require.NoError(t, sess.Login(context.Background(), gofakeit.Email(), "secret1"))

	env.session = sess
	env.store = NewStore(client, sess, zap.NewNop())
	return env
}

func TestStore_SeedsFromSession(t *testing.T) {
	seeded := []session.Allergy{{Name: "milk", Severity: session.SeverityMild}}
	env := newTestEnv(t, seeded)

	assert.Equal(t, seeded, env.store.List())
}

func TestStore_AddNormalizesName(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.True(t, env.store.Add(session.Allergy{Name: "  Peanut Butter ", Severity: session.SeveritySevere}))

	list := env.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "peanut butter", list[0].Name)
}

func TestStore_AddDuplicateIsNoOp(t *testing.T) {
	env := newTestEnv(t, nil)

	require.True(t, env.store.Add(session.Allergy{Name: "Milk", Severity: session.SeverityMild, Notes: ""}))
	assert.False(t, env.store.Add(session.Allergy{Name: "milk", Severity: session.SeveritySevere, Notes: "x"}))

	// First write wins; the duplicate changes nothing.
	list := env.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, session.Allergy{Name: "milk", Severity: session.SeverityMild, Notes: ""}, list[0])
}

func TestStore_AddRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.False(t, env.store.Add(session.Allergy{Name: "   ", Severity: session.SeverityMild}))
	assert.False(t, env.store.Add(session.Allergy{Name: "egg", Severity: "catastrophic"}))
	assert.Empty(t, env.store.List())
}

func TestStore_Remove(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Add(session.Allergy{Name: "milk", Severity: session.SeverityMild})
	env.store.Add(session.Allergy{Name: "egg", Severity: session.SeverityModerate})

	assert.True(t, env.store.Remove("milk"))
	assert.False(t, env.store.Remove("milk"), "already removed")

	list := env.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "egg", list[0].Name)
}

func TestStore_PersistSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Add(session.Allergy{Name: "peanut", Severity: session.SeveritySevere, Notes: "EpiPen"})
	env.store.Add(session.Allergy{Name: "shellfish", Severity: session.SeverityModerate})

	require.NoError(t, env.store.Persist(context.Background()))

	// The full list is sent, not a diff.
	require.Len(t, env.persisted, 1)
	assert.Len(t, env.persisted[0], 2)

	// And merged back into the session profile.
	user := env.session.User()
	require.NotNil(t, user)
	assert.Len(t, user.Allergies, 2)
}

func TestStore_PersistFailureLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Add(session.Allergy{Name: "peanut", Severity: session.SeveritySevere})
	env.persistStatus = http.StatusBadRequest
	env.persistBody = `{"error":"Too many allergies"}`

	err := env.store.Persist(context.Background())
	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Too many allergies", apiErr.Message)

	// Local list untouched, session profile untouched.
	assert.Len(t, env.store.List(), 1)
	assert.Empty(t, env.session.User().Allergies)
}

func TestStore_SyncFromSessionAfterLogout(t *testing.T) {
	env := newTestEnv(t, []session.Allergy{{Name: "soy", Severity: session.SeverityMild}})

	env.session.Logout()
	env.store.SyncFromSession()

	assert.Empty(t, env.store.List())
}
