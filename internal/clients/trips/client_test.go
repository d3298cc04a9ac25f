package trips

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saltline/passage/internal/lib/geo"
	"github.com/saltline/passage/internal/lib/route"
)

// MockHTTPDoer is a mock implementation of HTTPDoer
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func sampleTrip() SavedTrip {
	return SavedTrip{
		ID:   "trip_1",
		Name: "Saronic loop",
		Destinations: []route.Waypoint{
			{SequenceKey: "wp-athens", Label: "Athens", Position: geo.Point{Lat: 37.98, Lon: 23.73}},
			{SequenceKey: "wp-poros", Label: "Poros", Position: geo.Point{Lat: 37.50, Lon: 23.45}},
		},
		CreatedAt: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 6, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveTrips(t *testing.T) {
	var captured *http.Request
	var capturedBody string
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Run(func(args mock.Arguments) {
			captured = args.Get(0).(*http.Request)
			body, err := io.ReadAll(captured.Body)
			require.NoError(t, err)
			capturedBody = string(body)
		}).
		Return(createMockResponse(200, `{"ok": true}`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	err := client.SaveTrips(context.Background(), "user-1", []SavedTrip{sampleTrip()})

	require.NoError(t, err)
	assert.Equal(t, "POST", captured.Method)
	assert.Equal(t, "https://passage.example.com/api/trips", captured.URL.String())
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Contains(t, capturedBody, `"userId":"user-1"`)
	assert.Contains(t, capturedBody, `"Saronic loop"`)
	assert.Contains(t, capturedBody, `"wp-athens"`)
}

func TestSaveTripsServerError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Return(createMockResponse(500, `{"error": "db unavailable"}`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	err := client.SaveTrips(context.Background(), "user-1", []SavedTrip{sampleTrip()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "db unavailable")
}

func TestSaveTripsNetworkError(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Return(nil, errors.New("connection refused"))

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	err := client.SaveTrips(context.Background(), "user-1", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLoadTrips(t *testing.T) {
	var captured *http.Request
	body := `{"trips": [
		{
			"id": "trip_1",
			"name": "Saronic loop",
			"destinations": [
				{"key": "wp-athens", "day": "2026-06-01", "destination": "Athens",
				 "coordinates": {"lat": 37.98, "lon": 23.73}, "distanceNM": 0,
				 "duration": "", "comfortLevel": "comfortable", "safety": ""}
			],
			"createdAt": "2026-06-01T12:00:00Z",
			"updatedAt": "2026-06-02T12:00:00Z"
		}
	]}`
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*http.Request) }).
		Return(createMockResponse(200, body), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	loaded, err := client.LoadTrips(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, "GET", captured.Method)
	assert.Equal(t, "user-1", captured.URL.Query().Get("userId"))
	require.Len(t, loaded, 1)
	assert.Equal(t, "trip_1", loaded[0].ID)
	assert.Equal(t, "Saronic loop", loaded[0].Name)
	require.Len(t, loaded[0].Destinations, 1)
	assert.Equal(t, "Athens", loaded[0].Destinations[0].Label)
	assert.InDelta(t, 23.73, loaded[0].Destinations[0].Position.Lon, 1e-9)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), loaded[0].CreatedAt)
}

func TestLoadTripsEmptyCollection(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Return(createMockResponse(200, `{"trips": []}`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	loaded, err := client.LoadTrips(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadTripsMalformedResponse(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Return(createMockResponse(200, `not json`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	_, err := client.LoadTrips(context.Background(), "user-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestDeleteTrip(t *testing.T) {
	var captured *http.Request
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Run(func(args mock.Arguments) { captured = args.Get(0).(*http.Request) }).
		Return(createMockResponse(200, `{"ok": true}`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	err := client.DeleteTrip(context.Background(), "user-1", "trip_1")

	require.NoError(t, err)
	assert.Equal(t, "DELETE", captured.Method)
	assert.Equal(t, "/api/trips/trip_1", captured.URL.Path)
	assert.Equal(t, "user-1", captured.URL.Query().Get("userId"))
}

func TestDeleteTripNotFound(t *testing.T) {
	mockHTTP := &MockHTTPDoer{}
	mockHTTP.On("Do", mock.AnythingOfType("*http.Request")).
		Return(createMockResponse(404, `{"error": "no such trip"}`), nil)

	client := NewClientWithHTTPDoer("https://passage.example.com", mockHTTP)
	err := client.DeleteTrip(context.Background(), "user-1", "trip_9")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNewTripIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewTripID()
		require.False(t, seen[id], "duplicate trip id %s", id)
		seen[id] = true
	}
}
