package police

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/crimedb/internal/domain"
	"github.com/varoOP/crimedb/internal/metrics"
)

const sampleCrimes = `[
  {
    "category": "anti-social-behaviour",
    "location_type": "Force",
    "location": {
      "latitude": "52.640961",
      "street": {"id": 884343, "name": "On or near Wharf Street North"},
      "longitude": "-1.126371"
    },
    "context": "",
    "outcome_status": null,
    "persistent_id": "",
    "id": 54164419,
    "location_subtype": "",
    "month": "2023-05"
  },
  {
    "category": "burglary",
    "location": null,
    "id": "abc",
    "month": "2023-05"
  },
  {
    "category": "robbery",
    "location": {"latitude": "not-a-number", "longitude": 1.5},
    "month": "2023-05"
  }
]`

func testClient(baseURL string, interval time.Duration) *Client {
	return NewClient(zerolog.Nop(), &domain.Config{
		PoliceAPIURL:      baseURL,
		RateLimitInterval: interval,
		HTTPTimeout:       5 * time.Second,
	}, metrics.NewForTesting())
}

func TestClient_Fetch_ParsesRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crimes-street/all-crime", r.URL.Path)
		assert.Equal(t, "2023-05", r.URL.Query().Get("date"))
		assert.Equal(t, "51.5", r.URL.Query().Get("lat"))
		assert.Equal(t, "-0.1", r.URL.Query().Get("lng"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleCrimes))
	}))
	defer srv.Close()

	c := testClient(srv.URL, time.Millisecond)
	got, err := c.Fetch(context.Background(), 51.5, -0.1, domain.MustParseMonth("2023-05"))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.Incident{
		ID:         "54164419",
		Category:   "anti-social-behaviour",
		Month:      "2023-05",
		Lat:        52.640961,
		Lng:        -1.126371,
		StreetName: "On or near Wharf Street North",
	}, got[0])

	assert.Equal(t, domain.Incident{ID: "abc", Category: "burglary", Month: "2023-05"}, got[1])

	assert.Equal(t, "", got[2].ID)
	assert.Equal(t, 0.0, got[2].Lat)
	assert.Equal(t, 1.5, got[2].Lng)
	assert.Equal(t, "", got[2].StreetName)
}

func TestClient_Fetch_FailuresAreEmpty(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "too many points",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "not an array",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"error": "nope"}`))
			},
		},
		{
			name: "truncated body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[{"id": 1`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			got, err := testClient(srv.URL, time.Millisecond).Fetch(context.Background(), 51.5, -0.1, domain.MustParseMonth("2023-05"))
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestClient_Fetch_TransportErrorIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	got, err := testClient(url, time.Millisecond).Fetch(context.Background(), 51.5, -0.1, domain.MustParseMonth("2023-05"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_Fetch_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := testClient(srv.URL, time.Millisecond).Fetch(ctx, 51.5, -0.1, domain.MustParseMonth("2023-05"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
	assert.Equal(t, int32(0), calls.Load())
}

func TestClient_Fetch_SpacesRequests(t *testing.T) {
	var (
		calls atomic.Int32
		times = make(chan time.Time, 3)
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		times <- time.Now()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	interval := 50 * time.Millisecond
	c := testClient(srv.URL, interval)

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), 51.5, -0.1, domain.MustParseMonth("2023-05"))
		require.NoError(t, err)
	}

	require.Equal(t, int32(3), calls.Load())
	first := <-times
	<-times
	third := <-times
	assert.GreaterOrEqual(t, third.Sub(first), 2*interval-5*time.Millisecond)
}

func TestClient_Fetch_SpacesConcurrentRequests(t *testing.T) {
	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	interval := 50 * time.Millisecond
	c := testClient(srv.URL, interval)

	const callers = 6
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Fetch(context.Background(), 51.5, -0.1, domain.MustParseMonth("2023-05"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, arrivals, callers)
	sort.Slice(arrivals, func(i, j int) bool { return arrivals[i].Before(arrivals[j]) })
	for i := 1; i < len(arrivals); i++ {
		assert.GreaterOrEqual(t, arrivals[i].Sub(arrivals[i-1]), interval-10*time.Millisecond, "gap before request %d", i)
	}
}

func TestDecodeCrimes_NonFiniteCoordinates(t *testing.T) {
	got, err := decodeCrimes([]byte(`[
		{"id": 1, "month": "2023-05", "location": {"latitude": "NaN", "longitude": "Infinity"}},
		{"id": 2, "month": "2023-05", "location": {"latitude": "-Inf", "longitude": "-0.1"}}
	]`))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Incident{ID: "1", Month: "2023-05"}, got[0])
	assert.Equal(t, 0.0, got[1].Lat)
	assert.Equal(t, -0.1, got[1].Lng)
	for _, i := range got {
		assert.NoError(t, i.Validate())
	}
}

func TestClient_LastUpdated(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   domain.Month
		wantOK bool
	}{
		{name: "date", body: `{"date": "2024-09-01"}`, status: http.StatusOK, want: domain.MustParseMonth("2024-09"), wantOK: true},
		{name: "timestamp", body: `{"date": "2024-09-01T00:00:00"}`, status: http.StatusOK, want: domain.MustParseMonth("2024-09"), wantOK: true},
		{name: "month", body: `{"date": "2024-08"}`, status: http.StatusOK, want: domain.MustParseMonth("2024-08"), wantOK: true},
		{name: "garbage", body: `{"date": "soon"}`, status: http.StatusOK},
		{name: "missing", body: `{}`, status: http.StatusOK},
		{name: "server error", body: ``, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/crime-last-updated", r.URL.Path)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, ok := testClient(srv.URL, time.Millisecond).LastUpdated(context.Background())
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
