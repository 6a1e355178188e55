package services

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"training-arena-system/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp wires a real queue and arena behind the HTTP adapter,
// with a stub auth middleware that trusts the X-User-ID header.
func newTestApp(t *testing.T) (*fiber.App, *arenaFixture) {
	t.Helper()

	f := newArenaFixture(t)
	queue := NewQueueService(config.Default(), f.arena, fakeSkills{}, fakeConsent{allow: true}, f.notifier, nil)
	queue.now = f.clock.Now
	api := &TrainingAPI{Queue: queue, Arena: f.arena}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", c.Get("X-User-ID"))
		return c.Next()
	})
	app.Post("/training/request", api.RequestSession)
	app.Delete("/training/request", api.CancelRequest)
	app.Post("/training/action", api.SubmitAction)
	app.Get("/training/session", api.GetSession)
	return app, f
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRequestEndpointQueuesAndMatches(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, "POST", "/training/request", "alice",
		`{"mode":"sparring","activity_types":["melee"]}`)
	require.Equal(t, 200, resp.StatusCode)
	var first RequestOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&first))
	assert.False(t, first.Matched)
	assert.Equal(t, 1, first.QueuePosition)

	resp = doJSON(t, app, "POST", "/training/request", "bob",
		`{"mode":"sparring","activity_types":["melee"]}`)
	require.Equal(t, 200, resp.StatusCode)
	var second RequestOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&second))
	assert.True(t, second.Matched)
	assert.Equal(t, "alice", second.OpponentID)
}

func TestRequestEndpointConflictOnDoubleQueue(t *testing.T) {
	app, _ := newTestApp(t)

	body := `{"mode":"sparring","activity_types":["melee"]}`
	resp := doJSON(t, app, "POST", "/training/request", "alice", body)
	require.Equal(t, 200, resp.StatusCode)
	resp = doJSON(t, app, "POST", "/training/request", "alice", body)
	assert.Equal(t, 409, resp.StatusCode)
}

func TestRequestEndpointBadPayload(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, "POST", "/training/request", "alice", `{not json`)
	assert.Equal(t, 400, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/training/request", "alice", `{"mode":"sparring"}`)
	assert.Equal(t, 400, resp.StatusCode) // no activity types
}

func TestActionEndpointStatusMapping(t *testing.T) {
	app, f := newTestApp(t)

	// No session yet.
	resp := doJSON(t, app, "POST", "/training/action", "alice", `{"type":"attack"}`)
	assert.Equal(t, 404, resp.StatusCode)

	for _, pid := range []string{"alice", "bob"} {
		r := doJSON(t, app, "POST", "/training/request", pid,
			`{"mode":"sparring","activity_types":["melee"]}`)
		require.Equal(t, 200, r.StatusCode)
	}

	f.clock.Advance(2 * time.Second)
	resp = doJSON(t, app, "POST", "/training/action", "alice", `{"type":"attack"}`)
	assert.Equal(t, 200, resp.StatusCode)

	// Immediately again: rate limited.
	resp = doJSON(t, app, "POST", "/training/action", "bob", `{"type":"attack"}`)
	assert.Equal(t, 429, resp.StatusCode)

	f.clock.Advance(2 * time.Second)
	resp = doJSON(t, app, "POST", "/training/action", "bob", `{"type":"juggle"}`)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSessionEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, "GET", "/training/session", "alice", "")
	assert.Equal(t, 404, resp.StatusCode)

	for _, pid := range []string{"alice", "bob"} {
		r := doJSON(t, app, "POST", "/training/request", pid,
			`{"mode":"sparring","activity_types":["melee"]}`)
		require.Equal(t, 200, r.StatusCode)
	}

	resp = doJSON(t, app, "GET", "/training/session", "alice", "")
	require.Equal(t, 200, resp.StatusCode)
	var snap SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "bob", snap.OpponentID)
}

func TestCancelEndpointIdempotent(t *testing.T) {
	app, _ := newTestApp(t)

	r := doJSON(t, app, "POST", "/training/request", "alice",
		`{"mode":"sparring","activity_types":["melee"]}`)
	require.Equal(t, 200, r.StatusCode)

	resp := doJSON(t, app, "DELETE", "/training/request", "alice", "")
	require.Equal(t, 200, resp.StatusCode)
	var out map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out["removed"])

	resp = doJSON(t, app, "DELETE", "/training/request", "alice", "")
	require.Equal(t, 200, resp.StatusCode)
	out = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out["removed"])
}
