package web

import (
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequins/internal/config"
	"sequins/internal/model"
	"sequins/internal/sequencer"
)

type fakeSequencer struct {
	mu       sync.Mutex
	status   sequencer.Status
	resetErr error
	resets   int
	sub      func(sequencer.Status)
	frames   []model.Frame
}

func (f *fakeSequencer) Status() sequencer.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSequencer) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetErr
}

func (f *fakeSequencer) Pattern() []model.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Frame(nil), f.frames...)
}

func (f *fakeSequencer) Subscribe(fn func(sequencer.Status)) func() {
	f.mu.Lock()
	f.sub = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.sub = nil
		f.mu.Unlock()
	}
}

func (f *fakeSequencer) resetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}

func (f *fakeSequencer) failReset(err error) {
	f.mu.Lock()
	f.resetErr = err
	f.mu.Unlock()
}

func (f *fakeSequencer) push(st sequencer.Status) {
	f.mu.Lock()
	f.status = st
	fn := f.sub
	f.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func newTestServer(t *testing.T, cfg *config.Config) (*httptest.Server, *fakeSequencer, *Server) {
	t.Helper()
	seq := &fakeSequencer{status: sequencer.Status{ActiveStep: 3, Slots: 32, Steps: 4}}
	s := NewServer(cfg, seq)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return ts, seq, s
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatus(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st sequencer.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 3, st.ActiveStep)
	assert.Equal(t, 32, st.Slots)

	post, err := http.Post(ts.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestReset(t *testing.T) {
	ts, seq, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, seq.resetCount())

	get, err := http.Get(ts.URL + "/api/reset")
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)

	seq.failReset(errors.New("bus gone"))
	resp, err = http.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "pad", Password: "secret"}
	ts, _, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	require.NoError(t, err)
	req.SetBasicAuth("pad", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBasicAuthNeedsBothFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "pad"}
	ts, _, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketStreamsChanges(t *testing.T) {
	ts, seq, _ := newTestServer(t, config.DefaultConfig())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var st sequencer.Status
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, 3, st.ActiveStep)

	seq.push(sequencer.Status{ActiveStep: 4, Slots: 32, Held: []int{2}})
	require.NoError(t, conn.ReadJSON(&st))
	assert.Equal(t, 4, st.ActiveStep)
	assert.Equal(t, []int{2}, st.Held)
}

func TestCloseCancelsSubscription(t *testing.T) {
	seq := &fakeSequencer{}
	s := NewServer(config.DefaultConfig(), seq)
	require.NotNil(t, seq.sub)
	s.Close()
	assert.Nil(t, seq.sub)
}

func TestPreview(t *testing.T) {
	ts, _, _ := newTestServer(t, config.DefaultConfig())

	resp, err := http.Get(ts.URL + "/preview.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())
}

func TestPreviewInvalidLayout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Display.FrameWidth = 3
	ts, _, _ := newTestServer(t, cfg)

	resp, err := http.Get(ts.URL + "/preview.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
