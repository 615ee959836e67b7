package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/trapgate/internal/platform"
)

// Client — REST-клиент платформы поверх цепочки надежности:
// Rate Limiter -> Circuit Breaker -> Retry (только для идемпотентных чтений).
//
// Бан и удаления не ретраятся: повторный бан по таймауту хуже пропущенного,
// сработавшая ловушка без бана уходит в аудит на ручной разбор.
type Client struct {
	httpc   *http.Client
	base    string
	token   string
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

var _ platform.API = (*Client)(nil)

func NewClient(base, token string, logger *zap.Logger) *Client {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "discord-rest",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	// Глобальный лимит платформы — 50 rps на токен
	limiter := rate.NewLimiter(rate.Limit(45), 10)

	return &Client{
		httpc:   &http.Client{Timeout: 15 * time.Second},
		base:    base,
		token:   token,
		limiter: limiter,
		cb:      cb,
		logger:  logger.Named("discord-rest"),
	}
}

// do выполняет один REST-вызов через цепочку надежности.
// auditReason уходит в заголовок X-Audit-Log-Reason (журнал платформы).
func (c *Client) do(ctx context.Context, method, path, auditReason string, body, out any, idempotent bool) error {
	// 1. Rate Limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	call := func() error {
		tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return c.roundTrip(tCtx, method, path, auditReason, payload, out)
	}

	// 2. Circuit Breaker
	_, err := c.cb.Execute(func() (interface{}, error) {
		if !idempotent {
			return nil, call()
		}

		// 3. Retry с умной задержкой: 429 ждёт ровно Retry-After,
		// остальное — экспоненциальный бэкофф
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				var tErr *platform.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}
				return retry.BackOffDelay(n, err, config)
			}),
		)
		return nil, r.Do(call)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path, auditReason string, payload []byte, out any) error {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auditReason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(auditReason))
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return c.throttleError(resp, data)
	}
	if resp.StatusCode >= 400 {
		apiErr := &platform.APIError{Status: resp.StatusCode}
		var e struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil {
			apiErr.Code = e.Code
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// throttleError считывает Retry-After из тела или заголовка.
func (c *Client) throttleError(resp *http.Response, data []byte) error {
	after := time.Second
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if json.Unmarshal(data, &body) == nil && body.RetryAfter > 0 {
		after = time.Duration(body.RetryAfter * float64(time.Second))
	} else if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil {
			after = time.Duration(secs * float64(time.Second))
		}
	}
	c.logger.Warn("throttled by platform", zap.Duration("retry_after", after))
	return &platform.ThrottleError{RetryAfter: after, Cause: errors.New("rate limited")}
}

// --- platform.API ---

func (c *Client) Identity(ctx context.Context) (*platform.User, error) {
	var u platform.User
	if err := c.do(ctx, http.MethodGet, "/users/@me", "", nil, &u, true); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) RegisterCommands(ctx context.Context, appID string, cmds []platform.ApplicationCommand) error {
	// PUT перезаписывает весь набор — регистрация идемпотентна
	return c.do(ctx, http.MethodPut, "/applications/"+appID+"/commands", "", cmds, nil, true)
}

func (c *Client) FetchGuild(ctx context.Context, guildID string) (*platform.Guild, error) {
	var g platform.Guild
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID, "", nil, &g, true); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) FetchMember(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	var m platform.Member
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/members/"+userID, "", nil, &m, true); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	var chans []platform.Channel
	if err := c.do(ctx, http.MethodGet, "/guilds/"+guildID+"/channels", "", nil, &chans, true); err != nil {
		return nil, err
	}
	return chans, nil
}

func (c *Client) CreateChannel(ctx context.Context, guildID, name, reason string) (*platform.Channel, error) {
	body := map[string]any{"name": name, "type": 0}
	var ch platform.Channel
	if err := c.do(ctx, http.MethodPost, "/guilds/"+guildID+"/channels", reason, body, &ch, false); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) SetChannelTopic(ctx context.Context, channelID, topic string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+channelID, "", map[string]any{"topic": topic}, nil, false)
}

func (c *Client) SendMessage(ctx context.Context, channelID, content string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", "", map[string]any{"content": content}, nil, false)
}

func (c *Client) CreateDM(ctx context.Context, userID string) (*platform.Channel, error) {
	var ch platform.Channel
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", "", map[string]any{"recipient_id": userID}, &ch, false); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *Client) BanMember(ctx context.Context, guildID, userID, reason string, deleteSeconds int) error {
	body := map[string]any{"delete_message_seconds": deleteSeconds}
	return c.do(ctx, http.MethodPut, "/guilds/"+guildID+"/bans/"+userID, reason, body, nil, false)
}

func (c *Client) ListMessages(ctx context.Context, channelID, beforeID string, limit int) ([]platform.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if beforeID != "" {
		q.Set("before", beforeID)
	}
	var msgs []platform.Message
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/messages?"+q.Encode(), "", nil, &msgs, true); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) BulkDeleteMessages(ctx context.Context, channelID string, messageIDs []string) error {
	body := map[string]any{"messages": messageIDs}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages/bulk-delete", "", body, nil, false)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, "", nil, nil, false)
}

func (c *Client) RespondToInteraction(ctx context.Context, interactionID, token, content string, ephemeral bool) error {
	data := map[string]any{"content": content}
	if ephemeral {
		data["flags"] = 64 // EPHEMERAL
	}
	body := map[string]any{
		"type": 4, // CHANNEL_MESSAGE_WITH_SOURCE
		"data": data,
	}
	return c.do(ctx, http.MethodPost, "/interactions/"+interactionID+"/"+token+"/callback", "", body, nil, false)
}
