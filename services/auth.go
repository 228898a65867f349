package services

import (
	"context"
	"errors"
	"fmt"
	"schoolchat/config"
	"schoolchat/db"
	"schoolchat/models"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Authenticator проверяет токен и возвращает id пользователя.
// Выпуск токенов не входит в чат.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (int64, error)
}

// JWTAuthenticator принимает токены основного приложения, sub = id пользователя
type JWTAuthenticator struct {
	secret    []byte
	algorithm string
}

func NewJWTAuthenticator(secret, algorithm string) *JWTAuthenticator {
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	return &JWTAuthenticator{secret: []byte(secret), algorithm: algorithm}
}

func (a *JWTAuthenticator) Authenticate(_ context.Context, token string) (int64, error) {
	if token == "" {
		return 0, fmt.Errorf("%w: token is empty", ErrAuthenticationFailed)
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{a.algorithm}))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	var userID int64
	switch sub := claims["sub"].(type) {
	case string:
		userID, err = strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid subject", ErrAuthenticationFailed)
		}
	case float64:
		userID = int64(sub)
	default:
		return 0, fmt.Errorf("%w: subject is missing", ErrAuthenticationFailed)
	}
	if userID <= 0 {
		return 0, fmt.Errorf("%w: invalid subject", ErrAuthenticationFailed)
	}
	return userID, nil
}

// TokenStoreAuthenticator ищет непрозрачный токен в таблице user_tokens
type TokenStoreAuthenticator struct {
	orm *gorm.DB
}

func NewTokenStoreAuthenticator(orm *gorm.DB) *TokenStoreAuthenticator {
	return &TokenStoreAuthenticator{orm: orm}
}

func (a *TokenStoreAuthenticator) Authenticate(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, fmt.Errorf("%w: token is empty", ErrAuthenticationFailed)
	}
	var row models.UserTokens
	err := db.ReadDB(ctx, a.orm).Model(&models.UserTokens{}).Where("token = ?", token).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: unknown token", ErrAuthenticationFailed)
	}
	if err != nil {
		return 0, storageErr("check_token", err)
	}
	return row.UserID, nil
}

// ActiveUserAuthenticator дополнительно требует активного пользователя в справочнике
type ActiveUserAuthenticator struct {
	Inner     Authenticator
	Directory UserDirectory
}

func (a *ActiveUserAuthenticator) Authenticate(ctx context.Context, token string) (int64, error) {
	userID, err := a.Inner.Authenticate(ctx, token)
	if err != nil {
		return 0, err
	}
	user, err := a.Directory.GetUser(ctx, userID)
	if errors.Is(err, ErrTargetNotFound) {
		return 0, fmt.Errorf("%w: user %d not found", ErrAuthenticationFailed, userID)
	}
	if err != nil {
		return 0, err
	}
	if !user.IsActive {
		return 0, fmt.Errorf("%w: user %d is inactive", ErrAuthenticationFailed, userID)
	}
	return userID, nil
}

// NewAuthenticator собирает аутентификатор по режиму из конфига
func NewAuthenticator(conf *config.ConfigSchema, orm *gorm.DB, directory UserDirectory) (Authenticator, error) {
	var inner Authenticator
	switch conf.Auth.Mode {
	case "jwt":
		inner = NewJWTAuthenticator(conf.Auth.Secret, conf.Auth.Algorithm)
	case "token":
		inner = NewTokenStoreAuthenticator(orm)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", conf.Auth.Mode)
	}
	return &ActiveUserAuthenticator{Inner: inner, Directory: directory}, nil
}
