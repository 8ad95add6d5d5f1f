package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/pkg/log"
	"github.com/pribylovaa/module-mind/internal/storage"
)

// errRefreshCollision — исчерпаны попытки сгенерировать уникальный refresh-токен.
var errRefreshCollision = errors.New("refresh token collision")

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// issueSession выпускает access+refresh. Если oldRefreshHash != "",
// старый refresh-токен сначала атомарно отзывается (ротация).
func (p *Provider) issueSession(ctx context.Context, user *models.User, oldRefreshHash string) (*models.Session, error) {
	const op = "identity.local.issueSession"

	if oldRefreshHash != "" {
		revoked, err := p.storage.RevokeRefreshTokenIfActive(ctx, oldRefreshHash)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, errRefreshNotFound
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if !revoked {
			return nil, errRefreshReused
		}
	}

	now := p.now()

	access, err := p.generateAccessToken(ctx, user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := p.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(p.cfg.AccessTokenTTL),
		User:         *user,
	}, nil
}

func (p *Provider) generateAccessToken(ctx context.Context, user *models.User, now time.Time) (string, error) {
	const op = "identity.local.generateAccessToken"

	claims := accessClaims{
		Email: user.Email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cfg.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{p.cfg.Audience},
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(p.cfg.JWTSecret))
	if err != nil {
		log.From(ctx).Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// validateAccessToken проверяет подпись, issuer, audience и срок; возвращает ID пользователя.
func (p *Provider) validateAccessToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &accessClaims{},
		func(*jwt.Token) (any, error) { return []byte(p.cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithAudience(p.cfg.Audience),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	return uuid.Parse(claims.Subject)
}

func (p *Provider) generateRefreshToken(ctx context.Context, userID uuid.UUID) (string, error) {
	const (
		op          = "identity.local.generateRefreshToken"
		maxAttempts = 5
	)

	lg := log.From(ctx)

	for range maxAttempts {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		plain := base64.RawURLEncoding.EncodeToString(b)

		now := p.now()
		token := &models.RefreshToken{
			TokenHash: hashToken(plain),
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(p.cfg.RefreshTokenTTL),
		}

		if err := p.storage.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
			return "", fmt.Errorf("%s: %w", op, err)
		}

		return plain, nil
	}

	lg.Error("refresh_collision_exceeded", slog.String("op", op))

	return "", fmt.Errorf("%s: %w", op, errRefreshCollision)
}

// validateRefreshToken находит активный refresh-токен по хэшу.
func (p *Provider) validateRefreshToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	const op = "identity.local.validateRefreshToken"

	lg := log.From(ctx)

	token, err := p.storage.RefreshTokenByHash(ctx, hashToken(plain))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found", slog.String("op", op))
			return nil, errRefreshNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if token.Revoked {
		lg.Warn("refresh_revoked",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, errRefreshReused
	}

	if !p.now().Before(token.ExpiresAt) {
		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", token.UserID.String()),
		)
		return nil, errRefreshExpired
	}

	return token, nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
