// gotrue — identity.Provider для управляемого сервиса аутентификации
// с GoTrue-совместимым API (/auth/v1/...).
//
// Каждый запрос несёт публичный ключ клиента в заголовке apikey;
// запросы от имени пользователя дополнительно несут Authorization: Bearer <access>.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/pribylovaa/module-mind/internal/models"
)

// Config — параметры подключения.
type Config struct {
	BaseURL   string
	PublicKey string
	Timeout   time.Duration
}

// Provider — HTTP-клиент GoTrue.
type Provider struct {
	baseURL   string
	publicKey string
	http      *http.Client
	now       func() time.Time
}

// New создаёт провайдера. httpClient может быть nil.
func New(cfg Config, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/") + "/auth/v1",
		publicKey: cfg.PublicKey,
		http:      httpClient,
		now:       time.Now,
	}
}

type userDTO struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type sessionDTO struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *userDTO `json:"user"`
}

// signUpDTO покрывает оба ответа /signup: сессию (автоподтверждение)
// или голого пользователя (требуется подтверждение).
type signUpDTO struct {
	sessionDTO
	userDTO
}

type errorDTO struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// SignInWithPassword — POST /token?grant_type=password.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	const op = "identity.gotrue.SignInWithPassword"

	var out sessionDTO
	body := map[string]string{"email": email, "password": password}
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := p.toSession(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// SignUp — POST /signup с display_name в user_metadata.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*models.User, *models.Session, error) {
	const op = "identity.gotrue.SignUp"

	var out signUpDTO
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]string{"display_name": displayName},
	}
	if err := p.do(ctx, http.MethodPost, "/signup", "", body, &out); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if out.AccessToken == "" {
		user, err := toUser(&out.userDTO)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		return user, nil, nil
	}

	sess, err := p.toSession(&out.sessionDTO)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sess.User, sess, nil
}

// SignOut — POST /logout.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	const op = "identity.gotrue.SignOut"

	if err := p.do(ctx, http.MethodPost, "/logout", accessToken, nil, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshSession — POST /token?grant_type=refresh_token.
func (p *Provider) RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "identity.gotrue.RefreshSession"

	var out sessionDTO
	body := map[string]string{"refresh_token": refreshToken}
	if err := p.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "", body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess, err := p.toSession(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// User — GET /user.
func (p *Provider) User(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "identity.gotrue.User"

	var out userDTO
	if err := p.do(ctx, http.MethodGet, "/user", accessToken, nil, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := toUser(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdateUser — PUT /user, меняет только display_name.
func (p *Provider) UpdateUser(ctx context.Context, accessToken, displayName string) (*models.User, error) {
	const op = "identity.gotrue.UpdateUser"

	var out userDTO
	body := map[string]any{"data": map[string]string{"display_name": displayName}}
	if err := p.do(ctx, http.MethodPut, "/user", accessToken, body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := toUser(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// RecoverPassword — POST /recover.
func (p *Provider) RecoverPassword(ctx context.Context, email string) error {
	const op = "identity.gotrue.RecoverPassword"

	if err := p.do(ctx, http.MethodPost, "/recover", "", map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Provider) do(ctx context.Context, method, path, accessToken string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("apikey", p.publicKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	return json.Unmarshal(raw, out)
}

func decodeError(status int, raw []byte) *identity.ProviderError {
	pe := &identity.ProviderError{Status: status}

	var dto errorDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		pe.Message = strings.TrimSpace(string(raw))
		if pe.Message == "" {
			pe.Message = http.StatusText(status)
		}

		return pe
	}

	pe.Code = dto.ErrorCode
	if pe.Code == "" {
		if s, ok := dto.Code.(string); ok {
			pe.Code = s
		}
	}

	for _, m := range []string{dto.Msg, dto.Message, dto.ErrorDescription, dto.Error} {
		if m != "" {
			pe.Message = m
			break
		}
	}
	if pe.Message == "" {
		pe.Message = http.StatusText(status)
	}

	return pe
}

// toSession вычисляет момент истечения: expires_at, иначе now+expires_in,
// иначе claim exp access-токена (без проверки подписи).
func (p *Provider) toSession(dto *sessionDTO) (*models.Session, error) {
	if dto.AccessToken == "" || dto.User == nil {
		return nil, fmt.Errorf("malformed session response")
	}

	user, err := toUser(dto.User)
	if err != nil {
		return nil, err
	}

	var exp time.Time
	switch {
	case dto.ExpiresAt > 0:
		exp = time.Unix(dto.ExpiresAt, 0)
	case dto.ExpiresIn > 0:
		exp = p.now().Add(time.Duration(dto.ExpiresIn) * time.Second)
	default:
		exp, err = tokenExpiry(dto.AccessToken)
		if err != nil {
			return nil, err
		}
	}

	return &models.Session{
		AccessToken:  dto.AccessToken,
		RefreshToken: dto.RefreshToken,
		ExpiresAt:    exp.UTC(),
		User:         *user,
	}, nil
}

func tokenExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, fmt.Errorf("access token expiry: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}

	return exp.Time, nil
}

func toUser(dto *userDTO) (*models.User, error) {
	id, err := uuid.Parse(dto.ID)
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}

	name, _ := dto.UserMetadata["display_name"].(string)

	return &models.User{
		ID:          id,
		Email:       dto.Email,
		DisplayName: name,
		CreatedAt:   dto.CreatedAt.UTC(),
		UpdatedAt:   dto.UpdatedAt.UTC(),
	}, nil
}

var _ identity.Provider = (*Provider)(nil)
