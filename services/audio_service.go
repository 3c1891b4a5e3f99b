package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

var (
	ErrInvalidAudioRequest = errors.New("invalid audio request")
	ErrInferenceFailed     = errors.New("speech synthesis failed")
)

const maxAudioSize = 32 << 20

// AudioService turns reminder text into a voice-cloned audio file through the
// inference endpoint and stores the result.
type AudioService struct {
	client       *retryablehttp.Client
	inferenceURL string
	storage      AudioStorage
	logger       logrus.FieldLogger
}

func NewAudioService(client *retryablehttp.Client, inferenceURL string, storage AudioStorage, logger logrus.FieldLogger) *AudioService {
	return &AudioService{
		client:       client,
		inferenceURL: inferenceURL,
		storage:      storage,
		logger:       logger.WithField("component", "audio"),
	}
}

type inferenceRequest struct {
	Text           string `json:"text"`
	VoiceSampleURL string `json:"voiceSampleUrl"`
	InferMode      string `json:"inferMode,omitempty"`
}

// inferenceResponse is returned when the endpoint answers with JSON instead of audio bytes
type inferenceResponse struct {
	AudioURL string `json:"audioUrl"`
	Error    string `json:"error"`
}

// Generate synthesizes the text and returns the public URL of the stored audio
func (s *AudioService) Generate(ctx context.Context, req *models.GenerateAudioRequest) (*models.GenerateAudioResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.Wrap(ErrInvalidAudioRequest, "text is required")
	}
	if strings.TrimSpace(req.VoiceSampleURL) == "" {
		return nil, errors.Wrap(ErrInvalidAudioRequest, "audioUrl is required")
	}
	if s.inferenceURL == "" {
		return nil, errors.Wrap(ErrInferenceFailed, "inference endpoint is not configured")
	}

	mode := req.InferMode
	if mode == "" {
		mode = "Normal"
	}
	body, err := json.Marshal(inferenceRequest{Text: req.Text, VoiceSampleURL: req.VoiceSampleURL, InferMode: mode})
	if err != nil {
		return nil, err
	}

	data, contentType, err := s.fetch(ctx, http.MethodPost, s.inferenceURL, body)
	if err != nil {
		return nil, err
	}

	if isJSON(contentType) {
		var out inferenceResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, errors.Wrapf(ErrInferenceFailed, "decode response: %v", err)
		}
		if out.AudioURL == "" {
			return nil, errors.Wrapf(ErrInferenceFailed, "no audio returned: %s", out.Error)
		}
		data, contentType, err = s.fetch(ctx, http.MethodGet, out.AudioURL, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInferenceFailed, "empty audio")
	}

	key := GenerateAudioKey(contentType)
	url, err := s.storage.SaveAudio(ctx, key, data, contentType)
	if err != nil {
		return nil, errors.Wrap(err, "store audio")
	}

	s.logger.WithFields(logrus.Fields{"key": key, "bytes": len(data)}).Info("audio generated")
	return &models.GenerateAudioResponse{GeneratedAudioURL: url, FileKey: key}, nil
}

func (s *AudioService) fetch(ctx context.Context, method, url string, body []byte) ([]byte, string, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequest(method, url, reader)
	if err != nil {
		return nil, "", err
	}
	req = req.WithContext(ctx)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", errors.Wrapf(ErrInferenceFailed, "%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return nil, "", errors.Wrapf(ErrInferenceFailed, "unexpected response code %d from %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, "", errors.Wrapf(ErrInferenceFailed, "read response: %v", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	return data, contentType, nil
}

func isJSON(contentType string) bool {
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}
