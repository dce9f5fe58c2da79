package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mychatmanager/chatmod/automod/model"
)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

// Sends a simple slack message to a channel via "incoming webhook", for bans and kicks.
//
// The slack incoming webhook must be already configured in the slack workplace.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewSlackNotifier(webhookURL string, client *http.Client) *SlackNotifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &SlackNotifier{WebhookURL: webhookURL, Client: client}
}

func slackText(evt model.Event) string {
	var verb string
	switch evt.Type {
	case model.EventUserBanned:
		verb = "banned"
	case model.EventUserKicked:
		verb = "kicked"
	default:
		return ""
	}
	msg := fmt.Sprintf("⚠ chatmod %s user `%d` in chat `%d`", verb, evt.UserID, evt.ChatID)
	if reason, ok := evt.Payload["reason"].(string); ok && reason != "" {
		msg += fmt.Sprintf("\nreason: %s", reason)
	}
	if failed, _ := evt.Payload["actionFailed"].(bool); failed {
		msg += "\n*platform action failed*"
	}
	return msg
}

func (s *SlackNotifier) Handle(ctx context.Context, evt model.Event) error {
	text := slackText(evt)
	if text == "" {
		return nil
	}
	return s.Send(ctx, text)
}

func (s *SlackNotifier) Send(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
