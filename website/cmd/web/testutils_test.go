package main

import (
	"bytes"
	"context"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"geckoclient/climate_monitor/climate"
	"geckoclient/climate_monitor/website/internal/models"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/form/v4"
)

var t0 = time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)

type mockUserModel struct{}

func (m *mockUserModel) Insert(name, email, password string, admin bool) error {
	if email == "dupe@example.com" {
		return models.ErrDuplicateEmail
	}
	return nil
}

func (m *mockUserModel) Authenticate(email, password string) (int, error) {
	if email == "grower@example.com" && password == "pa55word" {
		return 1, nil
	}
	return 0, models.ErrInvalidCredentials
}

func (m *mockUserModel) Exists(id int) (bool, error) {
	return id == 1, nil
}

func (m *mockUserModel) AdminExists() (bool, error) {
	return false, nil
}

type mockBuckets struct {
	bucket *climate.Bucket
}

func (m *mockBuckets) FindOpenBucket(ctx context.Context, deviceID string, now time.Time, window time.Duration) (*climate.Bucket, error) {
	if m.bucket == nil || m.bucket.DeviceID != deviceID || !climate.WindowCovers(m.bucket.IntervalStart, now, window) {
		return nil, nil
	}
	return m.bucket, nil
}

func newTestApplication(t *testing.T) *application {
	t.Helper()

	templateCache, err := newTemplateCache()
	if err != nil {
		t.Fatal(err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = 12 * time.Hour
	sessionManager.Cookie.Secure = true

	bucket := climate.NewBucket("sensor-001", climate.Metadata{SensorType: "DHT11"},
		climate.NewSample(climate.Reading{Temperature: 21.5, Humidity: 40}, t0))
	bucket.Samples = append(bucket.Samples,
		climate.NewSample(climate.Reading{Temperature: 23.5, Humidity: 44}, t0.Add(10*time.Second)))

	return &application{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		users:          &mockUserModel{},
		buckets:        &mockBuckets{bucket: bucket},
		deviceID:       "sensor-001",
		window:         climate.DefaultWindow,
		now:            func() time.Time { return t0.Add(time.Minute) },
		templateCache:  templateCache,
		formDecoder:    form.NewDecoder(),
		sessionManager: sessionManager,
	}
}

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewTLSServer(h)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	ts.Client().Jar = jar
	ts.Client().CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &testServer{ts}
}

func (ts *testServer) get(t *testing.T, urlPath string) (int, http.Header, string) {
	rs, err := ts.Client().Get(ts.URL + urlPath)
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Body.Close()
	body, err := io.ReadAll(rs.Body)
	if err != nil {
		t.Fatal(err)
	}
	return rs.StatusCode, rs.Header, string(bytes.TrimSpace(body))
}

func (ts *testServer) postForm(t *testing.T, urlPath string, form url.Values) (int, http.Header, string) {
	rs, err := ts.Client().PostForm(ts.URL+urlPath, form)
	if err != nil {
		t.Fatal(err)
	}
	defer rs.Body.Close()
	body, err := io.ReadAll(rs.Body)
	if err != nil {
		t.Fatal(err)
	}
	return rs.StatusCode, rs.Header, string(bytes.TrimSpace(body))
}

var csrfTokenRX = regexp.MustCompile(`<input type='hidden' name='csrf_token' value='(.+)'>`)

func extractCSRFToken(t *testing.T, body string) string {
	matches := csrfTokenRX.FindStringSubmatch(body)
	if len(matches) < 2 {
		t.Fatal("no csrf token found in body")
	}
	return html.UnescapeString(matches[1])
}
