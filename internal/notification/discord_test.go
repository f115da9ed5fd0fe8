package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varoOP/crimedb/internal/domain"
)

func TestDiscordService_SendBackfillComplete(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewDiscordService(zerolog.Nop(), srv.URL)
	err := s.SendBackfillComplete(context.Background(), domain.BackfillSummary{
		JobID:         "job-1",
		LocationKey:   "SW1A1AA",
		MonthsPending: 20,
		MonthsFetched: 20,
		RecordsAdded:  431,
		Duration:      3 * time.Second,
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Backfill Completed", embed.Title)
	assert.Contains(t, embed.Description, "SW1A1AA")
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "20 of 20", embed.Fields[0].Value)
	assert.Equal(t, "431", embed.Fields[1].Value)
}

func TestDiscordService_SendBackfillError(t *testing.T) {
	var got discordWebhook
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	err := NewDiscordService(zerolog.Nop(), srv.URL).SendBackfillError(context.Background(), "SW1A1AA", errors.New("disk full"))
	require.NoError(t, err)
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, 0xff0000, got.Embeds[0].Color)
	assert.Contains(t, got.Embeds[0].Description, "disk full")
}

func TestDiscordService_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordService(zerolog.Nop(), srv.URL).SendBackfillError(context.Background(), "K", errors.New("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestService_NoWebhookIsNoop(t *testing.T) {
	s := NewService(zerolog.Nop(), "")
	assert.NoError(t, s.SendBackfillComplete(context.Background(), domain.BackfillSummary{}))
	assert.NoError(t, s.SendBackfillError(context.Background(), "K", errors.New("x")))
}
