package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mychatmanager/chatmod/automod/enforce"
	"github.com/mychatmanager/chatmod/util"

	"golang.org/x/time/rate"
)

// HTTPPlatform calls a Bot API style gateway: "POST {Host}/bot{Token}/{method}" with a JSON body, returning a JSON envelope.
type HTTPPlatform struct {
	Client  *http.Client
	Host    string
	Token   string
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

var _ enforce.ChatPlatform = (*HTTPPlatform)(nil)

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform %s failed (%d): %s", e.Method, e.StatusCode, e.Description)
}

// perSecond bounds outbound API calls across all chats
func NewHTTPPlatform(host, token string, perSecond float64, logger *slog.Logger) *HTTPPlatform {
	if logger == nil {
		logger = slog.Default()
	}
	if perSecond <= 0 {
		perSecond = 30
	}
	return &HTTPPlatform{
		Client:  util.RobustHTTPClient(logger),
		Host:    strings.TrimSuffix(host, "/"),
		Token:   token,
		Limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		Logger:  logger.With("component", "platform"),
	}
}

func (p *HTTPPlatform) call(ctx context.Context, method string, body any, out any) error {
	if p.Limiter != nil {
		if err := p.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/%s", p.Host, p.Token, method)
	req, err := http.NewRequestWithContext(ctx, "POST", u, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "chatmod")

	start := time.Now()
	resp, err := p.Client.Do(req)
	apiDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		apiErrors.WithLabelValues(method, "transport").Inc()
		return fmt.Errorf("platform %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("platform %s: reading response: %w", method, err)
	}
	var env apiResponse
	if err := json.Unmarshal(respBytes, &env); err != nil {
		apiErrors.WithLabelValues(method, "decode").Inc()
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: fmt.Sprintf("invalid response body: %v", err)}
	}
	if !env.OK || resp.StatusCode != http.StatusOK {
		apiErrors.WithLabelValues(method, fmt.Sprint(resp.StatusCode)).Inc()
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: env.Description}
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("platform %s: decoding result: %w", method, err)
		}
	}
	return nil
}

func (p *HTTPPlatform) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return p.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (p *HTTPPlatform) Restrict(ctx context.Context, chatID, userID int64, perms enforce.Permissions, until *time.Time) error {
	body := map[string]any{
		"chat_id":     chatID,
		"user_id":     userID,
		"permissions": perms,
	}
	if until != nil {
		body["until_date"] = until.Unix()
	}
	return p.call(ctx, "restrictChatMember", body, nil)
}

// Kick removes the member while allowing them to rejoin: a ban immediately followed by an unban.
func (p *HTTPPlatform) Kick(ctx context.Context, chatID, userID int64) error {
	if err := p.Ban(ctx, chatID, userID); err != nil {
		return err
	}
	return p.Unban(ctx, chatID, userID)
}

func (p *HTTPPlatform) Ban(ctx context.Context, chatID, userID int64) error {
	return p.call(ctx, "banChatMember", map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

func (p *HTTPPlatform) Unban(ctx context.Context, chatID, userID int64) error {
	return p.call(ctx, "unbanChatMember", map[string]any{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}

func (p *HTTPPlatform) SendMessage(ctx context.Context, chatID int64, text string) (enforce.MessageHandle, error) {
	var out struct {
		MessageID int64 `json:"message_id"`
	}
	err := p.call(ctx, "sendMessage", map[string]any{
		"chat_id":              chatID,
		"text":                 text,
		"disable_notification": true,
	}, &out)
	if err != nil {
		return enforce.MessageHandle{}, err
	}
	return enforce.MessageHandle{ChatID: chatID, MessageID: out.MessageID}, nil
}
