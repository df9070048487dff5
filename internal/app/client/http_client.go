package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"motium/internal/domain/company"
	"motium/internal/domain/record"
	domainsync "motium/internal/domain/sync"
	"motium/internal/domain/user"

	"golang.org/x/exp/slog"
)

const userAgent = "Motium-CLI/1.0"

// APIError - ответ сервера с кодом ошибки
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ошибка сервера: статус %d", e.StatusCode)
	}
	return fmt.Sprintf("ошибка сервера (%d): %s", e.StatusCode, e.Message)
}

// IsStatus проверяет, что err - ответ сервера с указанным статусом
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// APIClient - REST-клиент с обновлением access-токена и одним повтором запроса
type APIClient struct {
	client     *http.Client
	baseURL    string
	tokens     *TokenStore
	deviceID   string
	deviceName string
	log        *slog.Logger

	// только одно обновление токена одновременно
	refreshMu sync.Mutex
}

func NewAPIClient(baseURL string, tokens *TokenStore, deviceID string, log *slog.Logger) *APIClient {
	deviceName, err := os.Hostname()
	if err != nil {
		deviceName = "unknown"
	}

	return &APIClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		baseURL:    baseURL,
		tokens:     tokens,
		deviceID:   deviceID,
		deviceName: deviceName,
		log:        log.With("component", "api_client"),
	}
}

// HealthCheck проверяет доступность сервера
func (c *APIClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/v1/health", nil, nil, false)
}

func (c *APIClient) Register(ctx context.Context, email, password string) (int, error) {
	var resp struct {
		UserID int `json:"user_id"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/auth/register", user.BaseRequest{Email: email, Password: password}, &resp, false)
	return resp.UserID, err
}

// Login получает пару токенов и сохраняет ее
func (c *APIClient) Login(ctx context.Context, email, password string) (*Tokens, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", user.BaseRequest{Email: email, Password: password}, &resp, false); err != nil {
		return nil, err
	}

	t := resp.tokens()
	t.Email = email
	if err := c.tokens.Save(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Logout отзывает refresh-токен на сервере и удаляет локальную сессию.
// Локальная сессия удаляется даже без связи с сервером.
func (c *APIClient) Logout(ctx context.Context) error {
	t, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}

	remoteErr := c.do(ctx, http.MethodPost, "/api/v1/auth/logout", refreshRequest{RefreshToken: t.RefreshToken}, nil, false)
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	if remoteErr != nil {
		c.log.Warn("не удалось отозвать сессию на сервере", "error", remoteErr)
	}
	return nil
}

// IsAuthenticated - есть ли сохраненная сессия
func (c *APIClient) IsAuthenticated() bool {
	t, err := c.tokens.Load()
	return err == nil && t != nil && t.RefreshToken != ""
}

// GetChanges запрашивает изменения после since, нулевое время - полная выгрузка
func (c *APIClient) GetChanges(ctx context.Context, since time.Time, afterID string, limit int) (*domainsync.GetChangesResponse, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if afterID != "" {
		q.Set("after_id", afterID)
	}

	path := "/api/v1/sync/changes"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp domainsync.GetChangesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PushBatch отправляет пакет локальных изменений
func (c *APIClient) PushBatch(ctx context.Context, records []domainsync.RecordSync) (*domainsync.BatchSyncResponse, error) {
	var resp domainsync.BatchSyncResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sync/batch", domainsync.BatchSyncRequest{Records: records}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResolveConflict сообщает серверу, какая сторона победила
func (c *APIClient) ResolveConflict(ctx context.Context, conflictID int, resolution string) error {
	path := fmt.Sprintf("/api/v1/sync/conflicts/%d/resolve", conflictID)
	return c.do(ctx, http.MethodPost, path, domainsync.ResolveConflictRequest{Resolution: resolution}, nil, true)
}

func (c *APIClient) ServerStatus(ctx context.Context) (*domainsync.GetStatusResponse, error) {
	var resp domainsync.GetStatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/status", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) Devices(ctx context.Context) ([]domainsync.DeviceInfo, error) {
	var resp domainsync.GetDevicesResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/sync/devices", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *APIClient) CreateProAccount(ctx context.Context, req company.CreateProAccountRequest) (*company.ProAccount, error) {
	var resp struct {
		ProAccount *company.ProAccount `json:"pro_account"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/company", req, &resp, true); err != nil {
		return nil, err
	}
	return resp.ProAccount, nil
}

func (c *APIClient) GetProAccount(ctx context.Context) (*company.ProAccount, error) {
	var resp struct {
		ProAccount *company.ProAccount `json:"pro_account"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/company", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.ProAccount, nil
}

func (c *APIClient) Invite(ctx context.Context, req company.InviteRequest) (*company.Invitation, error) {
	var resp struct {
		Invitation *company.Invitation `json:"invitation"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/company/links", req, &resp, true); err != nil {
		return nil, err
	}
	return resp.Invitation, nil
}

func (c *APIClient) AcceptInvitation(ctx context.Context, token string) (*company.Link, error) {
	body := struct {
		Token string `json:"token"`
	}{Token: token}

	var resp struct {
		Link *company.Link `json:"link"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/company/invitations/accept", body, &resp, true); err != nil {
		return nil, err
	}
	return resp.Link, nil
}

func (c *APIClient) Links(ctx context.Context) ([]company.Link, error) {
	return c.links(ctx, "/api/v1/company/links")
}

func (c *APIClient) Memberships(ctx context.Context) ([]company.Link, error) {
	return c.links(ctx, "/api/v1/company/memberships")
}

func (c *APIClient) links(ctx context.Context, path string) ([]company.Link, error) {
	var resp struct {
		Links []company.Link `json:"links"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Links, nil
}

func (c *APIClient) RevokeLink(ctx context.Context, linkID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/company/links/%d", linkID), nil, nil, true)
}

func (c *APIClient) LinkedTrips(ctx context.Context, linkID int) ([]record.Record, error) {
	var resp struct {
		Trips []record.Record `json:"trips"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/company/links/%d/trips", linkID), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Trips, nil
}

func (c *APIClient) AddLicenses(ctx context.Context, count int) ([]company.License, error) {
	body := struct {
		Count int `json:"count"`
	}{Count: count}

	var resp struct {
		Licenses []company.License `json:"licenses"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/company/licenses", body, &resp, true); err != nil {
		return nil, err
	}
	return resp.Licenses, nil
}

func (c *APIClient) Licenses(ctx context.Context) ([]company.License, error) {
	var resp struct {
		Licenses []company.License `json:"licenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/company/licenses", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Licenses, nil
}

func (c *APIClient) AssignLicense(ctx context.Context, licenseID, linkID int) error {
	body := struct {
		LinkID int `json:"link_id"`
	}{LinkID: linkID}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/company/licenses/%d/assign", licenseID), body, nil, true)
}

func (c *APIClient) UnassignLicense(ctx context.Context, licenseID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/company/licenses/%d/unassign", licenseID), nil, nil, true)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       int       `json:"user_id"`
}

func (r tokenResponse) tokens() *Tokens {
	return &Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		UserID:       r.UserID,
	}
}

// do выполняет запрос. Для authed-запросов 401 приводит к обновлению токена и одному повтору.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
	}

	var access string
	if authed {
		t, err := c.tokens.Load()
		if err != nil {
			return err
		}
		if t == nil {
			return ErrUnauthenticated
		}
		access = t.AccessToken
	}

	resp, err := c.send(ctx, method, path, payload, access)
	if err != nil {
		return err
	}

	if authed && resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.log.Debug("access-токен отклонен, обновляем", "path", path)

		access, err = c.refresh(ctx, access)
		if err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, payload, access)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return ErrUnauthenticated
		}
	}

	return c.parseResponse(resp, out)
}

// refresh обменивает refresh-токен. stale - access-токен, получивший 401:
// если его уже заменил параллельный вызов, используется новый.
func (c *APIClient) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	t, err := c.tokens.Load()
	if err != nil {
		return "", err
	}
	if t == nil || t.RefreshToken == "" {
		return "", ErrUnauthenticated
	}
	if t.AccessToken != stale {
		return t.AccessToken, nil
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: t.RefreshToken})
	if err != nil {
		return "", fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/v1/auth/refresh", payload, "")
	if err != nil {
		return "", err
	}

	var tr tokenResponse
	if err := c.parseResponse(resp, &tr); err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			if clearErr := c.tokens.Clear(); clearErr != nil {
				c.log.Warn("не удалось удалить токены", "error", clearErr)
			}
			return "", ErrUnauthenticated
		}
		return "", err
	}

	fresh := tr.tokens()
	fresh.Email = t.Email
	if fresh.UserID == 0 {
		fresh.UserID = t.UserID
	}
	if err := c.tokens.Save(fresh); err != nil {
		return "", err
	}

	c.log.Debug("токены обновлены", "expires_at", fresh.ExpiresAt)
	return fresh.AccessToken, nil
}

func (c *APIClient) send(ctx context.Context, method, path string, payload []byte, access string) (*http.Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
		req.Header.Set("X-Device-Name", c.deviceName)
	}

	c.log.Debug("отправка запроса", "method", method, "url", req.URL.String())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrOffline, err)
	}
	return resp, nil
}

func (c *APIClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: ошибка чтения ответа: %w", ErrOffline, err)
	}

	c.log.Debug("получен ответ", "status", resp.StatusCode, "size", len(body))

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}
	return nil
}

// errorMessage понимает и problem+json, и тело 401 от middleware
func errorMessage(body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Error != "":
		return e.Error
	}
	return e.Title
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
