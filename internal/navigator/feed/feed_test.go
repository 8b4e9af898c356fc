package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/econav360/econav/internal/geo"
	"github.com/econav360/econav/internal/navigator"
)

type recorder struct {
	mu    sync.Mutex
	fixes []navigator.Fix
	errs  []error
}

func (r *recorder) onFix(f navigator.Fix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixes = append(r.fixes, f)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) snapshot() ([]navigator.Fix, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]navigator.Fix(nil), r.fixes...), append([]error(nil), r.errs...)
}

func TestDecodeFix(t *testing.T) {
	fix, err := decodeFix([]byte(`{"lat":29.8654,"lng":77.8958,"accuracy":8,"timestamp":1767225600000}`))
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 29.8654, Lng: 77.8958}, fix.Coordinate)
	assert.InDelta(t, 8, fix.AccuracyMeters, 0.001)
	assert.Equal(t, time.UnixMilli(1767225600000), fix.Timestamp)

	fix, err = decodeFix([]byte("28.6139, 77.2090"))
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinate{Lat: 28.6139, Lng: 77.2090}, fix.Coordinate)
	assert.True(t, fix.Timestamp.IsZero())

	_, err = decodeFix([]byte(`{"lat":29.8654}`))
	assert.Error(t, err)

	_, err = decodeFix([]byte("not a position"))
	assert.Error(t, err)
}

func TestLines(t *testing.T) {
	input := strings.Join([]string{
		"# morning walk",
		"28.6139,77.2090",
		"",
		"garbage",
		`{"lat":28.6150,"lng":77.2100}`,
	}, "\n")
	rec := &recorder{}
	src := NewLines(strings.NewReader(input), zerolog.Nop())

	stop, err := src.Watch(context.Background(), navigator.DefaultWatchOptions(), rec.onFix, rec.onError)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		fixes, _ := rec.snapshot()
		return len(fixes) == 2
	}, time.Second, 5*time.Millisecond)

	fixes, errs := rec.snapshot()
	assert.Equal(t, geo.Coordinate{Lat: 28.6139, Lng: 77.2090}, fixes[0].Coordinate)
	assert.Equal(t, geo.Coordinate{Lat: 28.6150, Lng: 77.2100}, fixes[1].Coordinate)
	assert.Empty(t, errs)

	_, err = src.Watch(context.Background(), navigator.DefaultWatchOptions(), rec.onFix, rec.onError)
	assert.Error(t, err)
}

func newFeedServer(t *testing.T, messages []string, hold chan struct{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if hold != nil {
			// Keep reading so close frames from the client are handled.
			go func() {
				for {
					if _, _, err := conn.ReadMessage(); err != nil {
						return
					}
				}
			}()
			<-hold
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_DeliversFixes(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := newFeedServer(t, []string{
		`{"lat":28.6139,"lng":77.2090}`,
		`{"lat":"bad"}`,
		"29.8654,77.8958",
	}, hold)

	rec := &recorder{}
	src := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Logger: zerolog.Nop()})
	stop, err := src.Watch(context.Background(), navigator.DefaultWatchOptions(), rec.onFix, rec.onError)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		fixes, _ := rec.snapshot()
		return len(fixes) == 2
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	stop()

	fixes, errs := rec.snapshot()
	assert.Equal(t, geo.Coordinate{Lat: 28.6139, Lng: 77.2090}, fixes[0].Coordinate)
	assert.Equal(t, geo.Coordinate{Lat: 29.8654, Lng: 77.8958}, fixes[1].Coordinate)
	assert.Empty(t, errs, "stopping is not a feed error")
}

func TestWebSocket_ReportsDroppedConnection(t *testing.T) {
	srv := newFeedServer(t, []string{"28.6139,77.2090"}, nil)

	rec := &recorder{}
	src := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Logger: zerolog.Nop()})
	stop, err := src.Watch(context.Background(), navigator.DefaultWatchOptions(), rec.onFix, rec.onError)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool {
		_, errs := rec.snapshot()
		return len(errs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	fixes, _ := rec.snapshot()
	assert.Len(t, fixes, 1)
}

func TestWebSocket_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewWebSocket(WebSocketConfig{URL: wsURL(srv), Logger: zerolog.Nop()})
	_, err := src.Watch(context.Background(), navigator.DefaultWatchOptions(), func(navigator.Fix) {}, func(error) {})
	assert.Error(t, err)
}

func TestWebSocket_DrivesTracker(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	srv := newFeedServer(t, []string{
		`{"lat":28.6139,"lng":77.2090,"timestamp":1767225600000}`,
		`{"lat":28.6140,"lng":77.2090,"timestamp":1767225602000}`,
		`{"lat":28.6160,"lng":77.2090,"timestamp":1767225604000}`,
	}, hold)

	tracker := navigator.NewTracker(navigator.TrackerConfig{
		Source: NewWebSocket(WebSocketConfig{URL: wsURL(srv), Logger: zerolog.Nop()}),
	})
	var mu sync.Mutex
	var accepted []geo.Coordinate
	tracker.OnUpdate(func(p navigator.TrackedPosition) {
		mu.Lock()
		accepted = append(accepted, p.Coordinate)
		mu.Unlock()
	})

	require.NoError(t, tracker.Start(context.Background()))
	defer tracker.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(accepted) == 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, geo.Coordinate{Lat: 28.6160, Lng: 77.2090}, accepted[1])
}
