package upstream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

type portalStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter)
}

func (p *portalStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.requests = append(p.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
		Body:   string(body),
	})
	p.mu.Unlock()
	if route, ok := p.routes[r.Method+" "+r.URL.Path]; ok {
		route(w)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (p *portalStub) last() recordedRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[len(p.requests)-1]
}

func respond(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newGateway(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*GatewayClient, *portalStub) {
	t.Helper()
	stub := &portalStub{routes: routes}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	client, err := NewGatewayClient(GatewayConfig{BaseURL: srv.URL + "/", School: "gym", Timeout: time.Second})
	require.NoError(t, err)
	return client, stub
}

func TestNewGatewayClientRequiresBaseURL(t *testing.T) {
	_, err := NewGatewayClient(GatewayConfig{})
	assert.Error(t, err)
}

func TestGatewayLoginStoresToken(t *testing.T) {
	client, stub := newGateway(t, map[string]func(w http.ResponseWriter){
		"POST /session/login": respond(http.StatusOK, `{"token":"abc"}`),
		"GET /students":       respond(http.StatusOK, `[{"id":1,"name":"Anna"},{"id":"2","firstName":"Ben","lastName":"Novak"}]`),
	})

	require.NoError(t, client.Login(context.Background(), "parent", "secret"))
	login := stub.last()
	assert.JSONEq(t, `{"username":"parent","password":"secret","school":"gym"}`, login.Body)
	assert.Empty(t, login.Auth)

	students, err := client.Students(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "1", students[0].ID.Value)
	assert.Equal(t, "Novak", students[1].LastName.Value)
	assert.Equal(t, "Bearer abc", stub.last().Auth)
}

func TestGatewayLoginRejected(t *testing.T) {
	client, _ := newGateway(t, map[string]func(w http.ResponseWriter){
		"POST /session/login": respond(http.StatusUnauthorized, `{"error":"bad credentials"}`),
	})

	err := client.Login(context.Background(), "parent", "wrong")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestGatewayTimetableForDate(t *testing.T) {
	client, stub := newGateway(t, map[string]func(w http.ResponseWriter){
		"GET /timetable": respond(http.StatusOK, `[{"period":"1","startTime":"08:00","endTime":"08:45","subject":{"name":"Math"},"teachers":[{"id":"t1","name":"Eva Kral"}]}]`),
	})

	lessons, err := client.TimetableForDate(context.Background(), time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "date=2024-01-08", stub.last().Query)
	require.Len(t, lessons, 1)
	assert.Equal(t, "08:00", lessons[0].StartTime.Value)
	assert.Equal(t, "Math", lessons[0].Subject.Name.Value)
	assert.Equal(t, "Eva Kral", lessons[0].Teachers[0].Name.Value)
}

func TestGatewayCollectionsTolerateEmptyBodies(t *testing.T) {
	client, _ := newGateway(t, map[string]func(w http.ResponseWriter){
		"GET /homeworks":         respond(http.StatusOK, ``),
		"GET /timeline":          respond(http.StatusOK, `[]`),
		"GET /teachers":          respond(http.StatusOK, `null`),
		"POST /session/refresh":  respond(http.StatusNoContent, ``),
		"POST /timeline/refresh": respond(http.StatusOK, ``),
	})
	ctx := context.Background()

	homeworks, err := client.Homeworks(ctx)
	require.NoError(t, err)
	assert.Empty(t, homeworks)
	timeline, err := client.Timeline(ctx)
	require.NoError(t, err)
	assert.Empty(t, timeline)
	teachers, err := client.Teachers(ctx)
	require.NoError(t, err)
	assert.Empty(t, teachers)
	assert.NoError(t, client.RefreshSession(ctx))
	assert.NoError(t, client.RefreshTimeline(ctx))
}

func TestGatewayDecodeFailure(t *testing.T) {
	client, _ := newGateway(t, map[string]func(w http.ResponseWriter){
		"GET /homeworks": respond(http.StatusOK, `{"not":"a list"`),
	})

	_, err := client.Homeworks(context.Background())
	assert.Error(t, err)
}

func TestGatewayPostJSONUsesAbsoluteURL(t *testing.T) {
	client, stub := newGateway(t, map[string]func(w http.ResponseWriter){
		"POST /menu/api": respond(http.StatusOK, `{"menu":[]}`),
	})
	srvURL := client.baseURL

	body, err := client.PostJSON(context.Background(), srvURL+"/menu/api", map[string]string{"date_from": "2024-01-08", "date_to": "2024-01-08"})
	require.NoError(t, err)
	assert.Equal(t, `{"menu":[]}`, string(body))
	assert.JSONEq(t, `{"date_from":"2024-01-08","date_to":"2024-01-08"}`, stub.last().Body)

	_, err = client.PostJSON(context.Background(), srvURL+"/jedalen/api", nil)
	assert.Error(t, err)
}

func TestGatewayUser(t *testing.T) {
	client, _ := newGateway(t, map[string]func(w http.ResponseWriter){
		"GET /user": respond(http.StatusOK, `{"userid":"u9","firstname":"pat","lastname":"doe"}`),
	})

	user, err := client.User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u9", user.ID.Value)
	assert.True(t, user.Present)
}
