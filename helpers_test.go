package goSession

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/internal/devserver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "correct-horse"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type devAPI struct {
	srv      *devserver.Server
	url      string
	clock    *testClock
	refreshN atomic.Int32
	meN      atomic.Int32
	lastAuth atomic.Value
}

func newDevAPI(t *testing.T, mutate func(*devserver.Config)) *devAPI {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	d := &devAPI{clock: newTestClock()}
	cfg := devserver.Config{
		SigningKey:    []byte("client-test-key"),
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		RotateRefresh: true,
		Redis:         rdb,
		BcryptCost:    bcrypt.MinCost,
		Now:           d.clock.Now,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := devserver.New(cfg)
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	if _, err := srv.AddUser("Alice Doe", testEmail, testPassword); err != nil {
		t.Fatalf("add user: %v", err)
	}
	d.srv = srv

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/user/token/refresh/"):
			d.refreshN.Add(1)
		case strings.HasSuffix(r.URL.Path, "/user/me/"):
			d.meN.Add(1)
			d.lastAuth.Store(r.Header.Get("Authorization"))
		}
		srv.ServeHTTP(w, r)
	}))
	d.url = hs.URL + srv.Prefix() + "/"

	t.Cleanup(func() {
		hs.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return d
}

func (d *devAPI) lastAuthorization() string {
	v, _ := d.lastAuth.Load().(string)
	return v
}

func newTestClient(t *testing.T, d *devAPI, configure func(*Builder)) *Client {
	t.Helper()

	b := New().
		WithBaseURL(d.url).
		WithClock(d.clock.Now).
		WithMetricsEnabled(true)
	if configure != nil {
		configure(b)
	}
	client, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
