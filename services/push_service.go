package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

const DefaultPushURL = "https://exp.host/--/api/v2/push/send"

// PushNotifier tells the owner of a reminder about the call outcome through their
// registered device token.
type PushNotifier struct {
	client *retryablehttp.Client
	url    string
	tokens TokenStore
	logger logrus.FieldLogger
}

func NewPushNotifier(client *retryablehttp.Client, url string, tokens TokenStore, logger logrus.FieldLogger) *PushNotifier {
	if url == "" {
		url = DefaultPushURL
	}
	return &PushNotifier{
		client: client,
		url:    url,
		tokens: tokens,
		logger: logger.WithField("component", "push"),
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notify sends the outcome of r. Reminders without an owner or owners without a token are skipped.
func (n *PushNotifier) Notify(ctx context.Context, r *models.Reminder) error {
	if r == nil || r.UserID == "" {
		return nil
	}
	token, err := n.tokens.GetToken(ctx, r.UserID)
	if err != nil {
		return errors.Wrap(err, "load push token")
	}
	if token == nil || token.Token == "" {
		n.logger.WithField("user_id", r.UserID).Debug("no push token")
		return nil
	}

	msg := pushMessage{
		To:    token.Token,
		Title: pushTitle(r),
		Body:  pushBody(r),
		Data:  map[string]string{"reminderId": r.ID, "status": string(r.Status)},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 || resp.StatusCode <= 199 {
		return errors.Errorf("unexpected response code %d received from push service", resp.StatusCode)
	}
	return nil
}

func pushTitle(r *models.Reminder) string {
	if r.Title != "" {
		return r.Title
	}
	return "Reminder"
}

func pushBody(r *models.Reminder) string {
	switch r.Status {
	case models.StatusCompleted:
		return fmt.Sprintf("We called %s.", r.PhoneNumber)
	case models.StatusFailed:
		return fmt.Sprintf("We could not call %s: %s", r.PhoneNumber, r.Result)
	}
	return "Your reminder was updated."
}
