package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remi-caller/models"
)

func newTestRetryClient() *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 0
	c.Logger = nil
	return c
}

func newTestAudioService(t *testing.T, h http.HandlerFunc) (*AudioService, string) {
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	dir := t.TempDir()
	storage, err := NewLocalAudioStorage(dir, "http://localhost:8080/audio/")
	require.NoError(t, err)
	return NewAudioService(newTestRetryClient(), ts.URL+"/infer", storage, newTestLogger()), dir
}

func TestAudioService_StoresReturnedAudio(t *testing.T) {
	svc, dir := newTestAudioService(t, func(w http.ResponseWriter, r *http.Request) {
		var req inferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Time for your pills", req.Text)
		assert.Equal(t, "https://cdn.example.com/voice.wav", req.VoiceSampleURL)
		assert.Equal(t, "Normal", req.InferMode)

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFFdata"))
	})

	out, err := svc.Generate(context.Background(), &models.GenerateAudioRequest{
		Text:           "Time for your pills",
		VoiceSampleURL: "https://cdn.example.com/voice.wav",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.FileKey, "audio/generated/"))
	assert.True(t, strings.HasSuffix(out.FileKey, ".wav"))
	assert.Equal(t, "http://localhost:8080/audio/"+out.FileKey, out.GeneratedAudioURL)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(out.FileKey)))
	require.NoError(t, err)
	assert.Equal(t, "RIFFdata", string(data))
}

func TestAudioService_FollowsAudioURL(t *testing.T) {
	var base string
	svc, _ := newTestAudioService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/infer":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write([]byte(`{"audioUrl":"` + base + `/files/out.mp3"}`))
		case "/files/out.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = w.Write([]byte("ID3"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	base = strings.TrimSuffix(svc.inferenceURL, "/infer")

	out, err := svc.Generate(context.Background(), &models.GenerateAudioRequest{Text: "hi", VoiceSampleURL: "x"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.FileKey, ".mp3"))
}

func TestAudioService_Errors(t *testing.T) {
	svc, _ := newTestAudioService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Generate(context.Background(), &models.GenerateAudioRequest{VoiceSampleURL: "x"})
	assert.True(t, errors.Is(err, ErrInvalidAudioRequest))
	_, err = svc.Generate(context.Background(), &models.GenerateAudioRequest{Text: "hi"})
	assert.True(t, errors.Is(err, ErrInvalidAudioRequest))

	_, err = svc.Generate(context.Background(), &models.GenerateAudioRequest{Text: "hi", VoiceSampleURL: "x"})
	assert.True(t, errors.Is(err, ErrInferenceFailed))
}

func TestLocalAudioStorage_Delete(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalAudioStorage(dir, "http://localhost/audio")
	require.NoError(t, err)

	url, err := storage.SaveAudio(context.Background(), "audio/generated/a.wav", []byte("x"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/audio/audio/generated/a.wav", url)

	require.NoError(t, storage.DeleteAudio(context.Background(), "audio/generated/a.wav"))
	require.NoError(t, storage.DeleteAudio(context.Background(), "audio/generated/a.wav"))
	_, err = os.Stat(filepath.Join(dir, "audio", "generated", "a.wav"))
	assert.True(t, os.IsNotExist(err))
}

func TestPushNotifier(t *testing.T) {
	var got []pushMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg pushMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		got = append(got, msg)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	store := NewMemoryReminderStore()
	require.NoError(t, store.SaveToken(context.Background(), "u1", "ExponentPushToken[abc]"))
	n := NewPushNotifier(newTestRetryClient(), ts.URL, store, newTestLogger())

	r := pendingReminder("1", nil)
	r.UserID = "u1"
	r.Status = models.StatusFailed
	r.Result = "placement timeout"
	require.NoError(t, n.Notify(context.Background(), r))

	r2 := pendingReminder("2", nil)
	r2.UserID = "nobody"
	require.NoError(t, n.Notify(context.Background(), r2))
	require.NoError(t, n.Notify(context.Background(), pendingReminder("3", nil)))

	require.Len(t, got, 1)
	assert.Equal(t, "ExponentPushToken[abc]", got[0].To)
	assert.Equal(t, "take pills 1", got[0].Title)
	assert.Contains(t, got[0].Body, "placement timeout")
	assert.Equal(t, "1", got[0].Data["reminderId"])
}
