package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nstogner/listingwriter/pkg/domain"
	"github.com/nstogner/listingwriter/pkg/model"
	"github.com/nstogner/listingwriter/pkg/post"
	"github.com/nstogner/listingwriter/pkg/session"
	"github.com/nstogner/listingwriter/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeProvider struct {
	mu      sync.Mutex
	prompts []string
	images  []string
	// block, when set, holds every Generate call until closed.
	started chan struct{}
	block   chan struct{}
	closed  bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeProvider) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeProvider) List(ctx context.Context) ([]domain.Model, error) {
	return []domain.Model{{ID: "gemini-1.5-flash", Provider: "fake"}}, nil
}

func (f *fakeProvider) Generate(ctx context.Context, modelName string, req model.Request) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	if req.Image != nil {
		f.images = append(f.images, req.Image.Name)
	}
	f.mu.Unlock()

	if f.block != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
		<-f.block
	}
	if req.Image != nil {
		return "about " + req.Image.Name, nil
	}
	return "text for " + modelName, nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestServer(t *testing.T, p *fakeProvider) (*Server, *httptest.Server) {
	t.Helper()
	open := func(ctx context.Context, apiKey string) (*session.Session, error) {
		if apiKey != "good-key" {
			return nil, errors.New("API key not valid")
		}
		return session.New(ctx, p, session.Options{Sleep: noSleep})
	}
	s := New(open, web.DistFS)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func openSession(t *testing.T, ts *httptest.Server, key string) *http.Response {
	t.Helper()
	body := strings.NewReader(`{"api_key":"` + key + `"}`)
	resp, err := http.Post(ts.URL+"/api/session", "application/json", body)
	require.NoError(t, err)
	return resp
}

func multipartBody(t *testing.T, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("price", "5억"))
	require.NoError(t, mw.WriteField("location", "Suseong"))
	require.NoError(t, mw.WriteField("features", "south facing"))
	for _, name := range order {
		fw, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		fw.Write(files[name])
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSessionLifecycle(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})

	resp, err := http.Get(ts.URL + "/api/session")
	require.NoError(t, err)
	var info sessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.False(t, info.Active)

	resp = openSession(t, ts, "bad-key")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = openSession(t, ts, "good-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.True(t, info.Active)
	assert.Equal(t, "gemini-1.5-flash", info.Model)
	assert.True(t, info.Confirmed)
	assert.Equal(t, "fake", info.Provider)
}

func TestRequiresSession(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	body, ct := multipartBody(t, map[string][]byte{"a.png": pngHeader}, []string{"a.png"})
	resp, err = http.Post(ts.URL+"/api/posts", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
}

func TestListModels(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})
	openSession(t, ts, "good-key").Body.Close()

	resp, err := http.Get(ts.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()
	var models []domain.Model
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&models))
	require.Len(t, models, 1)
	assert.Equal(t, "gemini-1.5-flash", models[0].ID)
}

func TestCreatePost(t *testing.T) {
	p := &fakeProvider{}
	_, ts := newTestServer(t, p)
	openSession(t, ts, "good-key").Body.Close()

	files := map[string][]byte{
		"living.png":  pngHeader,
		"kitchen.png": pngHeader,
		"notes.txt":   []byte("just some text"),
	}
	body, ct := multipartBody(t, files, []string{"living.png", "notes.txt", "kitchen.png"})
	resp, err := http.Post(ts.URL+"/api/posts", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "gemini-1.5-flash", got.Model)
	assert.Equal(t, "text for gemini-1.5-flash", got.Intro.Text)
	require.Len(t, got.Images, 3)
	assert.Equal(t, "about living.png", got.Images[0].Text)
	assert.Contains(t, got.Images[1].Error, "unsupported type")
	assert.Equal(t, "about kitchen.png", got.Images[2].Text)
	assert.True(t, got.Outro.OK())

	assert.Equal(t, []string{"living.png", "kitchen.png"}, p.images)
	assert.Contains(t, p.prompts[0], "5억")
}

func TestCreatePostNoImages(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})
	openSession(t, ts, "good-key").Body.Close()

	body, ct := multipartBody(t, nil, nil)
	resp, err := http.Post(ts.URL+"/api/posts", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePostBusy(t *testing.T) {
	p := &fakeProvider{started: make(chan struct{}, 1), block: make(chan struct{})}
	_, ts := newTestServer(t, p)
	openSession(t, ts, "good-key").Body.Close()

	firstBody, firstCT := multipartBody(t, map[string][]byte{"a.png": pngHeader}, []string{"a.png"})
	done := make(chan int)
	go func() {
		resp, err := http.Post(ts.URL+"/api/posts", firstCT, firstBody)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	<-p.started

	body, ct := multipartBody(t, map[string][]byte{"b.png": pngHeader}, []string{"b.png"})
	resp, err := http.Post(ts.URL+"/api/posts", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = openSession(t, ts, "good-key")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(p.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestPostWebSocket(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})
	openSession(t, ts, "good-key").Body.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/posts/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	job := map[string]any{
		"price":    "3억",
		"location": "Daegu",
		"features": "",
		"images": []map[string]any{
			{"name": "one.png", "data": pngHeader},
			{"name": "two.png", "data": pngHeader},
		},
	}
	require.NoError(t, ws.WriteJSON(job))

	var types []post.EventType
	var final *domain.Post
	for {
		var msg jobMessage
		if err := ws.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		require.Empty(t, msg.Error)
		require.NotNil(t, msg.Event)
		assert.NotEmpty(t, msg.JobID)
		types = append(types, msg.Event.Type)
		if msg.Event.Type == post.EventDone {
			final = msg.Event.Post
		}
	}

	require.NotNil(t, final)
	require.Len(t, final.Images, 2)
	assert.Equal(t, "about two.png", final.Images[1].Text)

	var progress int
	for _, typ := range types {
		if typ == post.EventProgress {
			progress++
		}
	}
	assert.Equal(t, 2, progress)
	assert.Equal(t, post.EventStageStarted, types[0])
}

func TestStaticIndex(t *testing.T) {
	_, ts := newTestServer(t, &fakeProvider{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp2, err := http.Get(ts.URL + "/api/unknown")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestOpenSessionDuringJobKeepsProviderOpen(t *testing.T) {
	first := &fakeProvider{started: make(chan struct{}, 1), block: make(chan struct{})}
	second := &fakeProvider{}
	providers := map[string]*fakeProvider{"first-key": first, "second-key": second}
	open := func(ctx context.Context, apiKey string) (*session.Session, error) {
		p, ok := providers[apiKey]
		if !ok {
			return nil, errors.New("API key not valid")
		}
		return session.New(ctx, p, session.Options{Sleep: noSleep})
	}
	ts := httptest.NewServer(New(open, web.DistFS).Handler())
	t.Cleanup(ts.Close)

	openSession(t, ts, "first-key").Body.Close()

	body, ct := multipartBody(t, map[string][]byte{"a.png": pngHeader}, []string{"a.png"})
	done := make(chan int)
	go func() {
		resp, err := http.Post(ts.URL+"/api/posts", ct, body)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-first.started

	resp := openSession(t, ts, "second-key")
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.False(t, first.isClosed())

	close(first.block)
	assert.Equal(t, http.StatusOK, <-done)
	assert.False(t, first.isClosed())

	// Once idle, the key can be replaced and later posts use the new session.
	resp = openSession(t, ts, "second-key")
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, first.isClosed())

	body, ct = multipartBody(t, map[string][]byte{"b.png": pngHeader}, []string{"b.png"})
	resp, err := http.Post(ts.URL+"/api/posts", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"b.png"}, second.images)
	assert.Equal(t, []string{"a.png"}, first.images)
}
