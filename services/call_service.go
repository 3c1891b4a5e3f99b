package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"remi-caller/models"
)

// CallPlacer places outbound calls that play an audio asset
type CallPlacer interface {
	PlaceCall(ctx context.Context, req models.CallRequest) (Call, error)
}

// Call is a placed call. Events yields started or failed first, then ended, and is
// closed after ended.
type Call interface {
	ID() string
	Events() <-chan models.CallEvent
	Hangup(ctx context.Context) error
}

// callHandle is the event channel shared by the placer implementations
type callHandle struct {
	mu     sync.Mutex
	id     string
	events chan models.CallEvent
	closed bool
	hangup func(ctx context.Context) error
}

func newCallHandle(id string, hangup func(ctx context.Context) error) *callHandle {
	return &callHandle{id: id, events: make(chan models.CallEvent, 4), hangup: hangup}
}

func (c *callHandle) ID() string                      { return c.id }
func (c *callHandle) Events() <-chan models.CallEvent { return c.events }

func (c *callHandle) Hangup(ctx context.Context) error {
	if c.hangup == nil {
		return nil
	}
	return c.hangup(ctx)
}

func (c *callHandle) emit(ev models.CallEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	ev.CallID = c.id
	select {
	case c.events <- ev:
	default:
	}
	if ev.Type == models.CallEnded {
		c.closed = true
		close(c.events)
	}
}

// NewCallPlacer creates the configured telephony provider
func NewCallPlacer(provider string, twilio TwilioConfig, client *http.Client, logger logrus.FieldLogger) (CallPlacer, error) {
	switch provider {
	case "twilio":
		p, err := NewTwilioPlacer(twilio, client, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "log", "":
		return NewLogPlacer(logger), nil
	default:
		return nil, fmt.Errorf("unknown call provider: %s", provider)
	}
}

// LogPlacer only logs calls. It reports every call as started and then ended.
type LogPlacer struct {
	logger logrus.FieldLogger
	seq    int64
	mu     sync.Mutex
}

func NewLogPlacer(logger logrus.FieldLogger) *LogPlacer {
	return &LogPlacer{logger: logger.WithField("component", "log_placer")}
}

func (p *LogPlacer) PlaceCall(ctx context.Context, req models.CallRequest) (Call, error) {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("log-%d", p.seq)
	p.mu.Unlock()

	log := p.logger.WithFields(logrus.Fields{"call_id": id, "to": req.To, "audio_url": req.AudioURL})
	call := newCallHandle(id, func(ctx context.Context) error {
		log.Info("hangup")
		return nil
	})
	log.Info("placing call")
	call.emit(models.CallEvent{Type: models.CallStarted})
	call.emit(models.CallEvent{Type: models.CallEnded})
	return call, nil
}

// TwilioConfig holds the REST credentials of the Twilio voice API
type TwilioConfig struct {
	BaseURL           string
	AccountSID        string
	AuthToken         string
	StatusCallbackURL string
}

const (
	twilioAPI = "https://api.twilio.com"

	// UserAgent is sent on every outbound provider request
	UserAgent = "remi-caller/1.0"
)

// TwilioPlacer places calls through the Twilio Calls REST resource. Call progress is
// delivered back through HandleStatusCallback.
type TwilioPlacer struct {
	cfg    TwilioConfig
	client *http.Client
	logger logrus.FieldLogger

	mu    sync.Mutex
	calls map[string]*callHandle
}

func NewTwilioPlacer(cfg TwilioConfig, client *http.Client, logger logrus.FieldLogger) (*TwilioPlacer, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = twilioAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &TwilioPlacer{
		cfg:    cfg,
		client: client,
		logger: logger.WithField("component", "twilio"),
		calls:  make(map[string]*callHandle),
	}, nil
}

type twilioCallResponse struct {
	Sid     string `json:"sid"`
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *TwilioPlacer) callsURL(sid string) string {
	u := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.AccountSID)
	if sid != "" {
		u += "/" + sid
	}
	return u + ".json"
}

func (p *TwilioPlacer) PlaceCall(ctx context.Context, req models.CallRequest) (Call, error) {
	twiml, err := BuildTwiML(req)
	if err != nil {
		return nil, &PlacementError{Kind: PlacementRejected, Err: err}
	}

	form := url.Values{
		"To":    {req.To},
		"From":  {req.From},
		"Twiml": {twiml},
	}
	if p.cfg.StatusCallbackURL != "" {
		form.Set("StatusCallback", p.cfg.StatusCallbackURL)
		form["StatusCallbackEvent"] = []string{"initiated", "answered", "completed"}
	}

	resp, err := p.post(ctx, p.callsURL(""), form)
	if err != nil {
		return nil, err
	}

	call := newCallHandle(resp.Sid, func(ctx context.Context) error {
		p.forget(resp.Sid)
		_, err := p.post(ctx, p.callsURL(resp.Sid), url.Values{"Status": {"completed"}})
		return err
	})
	p.mu.Lock()
	p.calls[resp.Sid] = call
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{"call_sid": resp.Sid, "status": resp.Status}).Info("call initiated")
	call.emit(models.CallEvent{Type: models.CallStarted})
	return call, nil
}

// HandleStatusCallback routes a provider status update to the matching call.
// Terminal statuses end the call.
func (p *TwilioPlacer) HandleStatusCallback(callSid, status string) bool {
	p.mu.Lock()
	call, ok := p.calls[callSid]
	if ok && isTerminalCallStatus(status) {
		delete(p.calls, callSid)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	p.logger.WithFields(logrus.Fields{"call_sid": callSid, "status": status}).Debug("call status")
	if isTerminalCallStatus(status) {
		call.emit(models.CallEvent{Type: models.CallEnded})
	}
	return true
}

func (p *TwilioPlacer) forget(callSid string) {
	p.mu.Lock()
	delete(p.calls, callSid)
	p.mu.Unlock()
}

// Tracked is the number of calls still waiting for a terminal status
func (p *TwilioPlacer) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func isTerminalCallStatus(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

func (p *TwilioPlacer) post(ctx context.Context, endpoint string, form url.Values) (*twilioCallResponse, error) {
	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, &PlacementError{Kind: PlacementRejected, Err: err}
	}
	req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	res, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &PlacementError{Kind: PlacementTimeout, Err: ctx.Err()}
		}
		return nil, &PlacementError{Kind: PlacementConnection, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, &PlacementError{Kind: PlacementConnection, Err: err}
	}

	var out twilioCallResponse
	_ = json.Unmarshal(data, &out)
	if res.StatusCode >= 300 || res.StatusCode <= 199 {
		msg := out.Message
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return nil, &PlacementError{
			Kind: PlacementProvider,
			Err:  errors.Errorf("unexpected response code %d (code %d): %s", res.StatusCode, out.Code, msg),
		}
	}
	return &out, nil
}

// BuildTwiML renders the call script: play the audio, or speak the message, then hang up
func BuildTwiML(req models.CallRequest) (string, error) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Response>`)
	switch {
	case req.AudioURL != "":
		b.WriteString("<Play>")
		if err := xml.EscapeText(&b, []byte(req.AudioURL)); err != nil {
			return "", err
		}
		b.WriteString("</Play>")
	case req.Message != "":
		b.WriteString("<Say>")
		if err := xml.EscapeText(&b, []byte(req.Message)); err != nil {
			return "", err
		}
		b.WriteString("</Say>")
	default:
		return "", errors.New("call has neither audio nor message")
	}
	b.WriteString("<Hangup/></Response>")
	return b.String(), nil
}
