package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"storylens/internal/shell"
)

const (
	flashCookieName = "storylens_flash"
	flashCookieTTL  = 10 * time.Second
)

// flashClaims - уведомление в подписанной HS256 куке.
type flashClaims struct {
	Kind    shell.ToastKind `json:"kind"`
	Message string          `json:"msg"`
	jwt.RegisteredClaims
}

// setFlash кладет уведомление в короткоживущую подписанную куку.
func (h *StoryHandler) setFlash(c *gin.Context, toast shell.Toast) {
	claims := flashClaims{
		Kind:    toast.Kind,
		Message: toast.Message,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(flashCookieTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.opts.FlashSecret)
	if err != nil {
		h.logger.Error("Failed to sign flash cookie", zap.Error(err))
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, signed, int(flashCookieTTL.Seconds()), "/", "", h.opts.SecureCookies, true)
}

// popFlash читает и удаляет уведомление. Нет куки или подпись неверна - nil.
func (h *StoryHandler) popFlash(c *gin.Context) *shell.Toast {
	raw, err := c.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	c.SetCookie(flashCookieName, "", -1, "/", "", h.opts.SecureCookies, true)

	toast, err := parseFlash(raw, h.opts.FlashSecret)
	if err != nil {
		h.logger.Debug("Invalid flash cookie ignored", zap.Error(err))
		return nil
	}
	return toast
}

func parseFlash(raw string, secret []byte) (*shell.Toast, error) {
	var claims flashClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse flash: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("flash token is not valid")
	}
	switch claims.Kind {
	case shell.ToastSuccess, shell.ToastError:
	default:
		return nil, fmt.Errorf("unknown toast kind %q", claims.Kind)
	}
	return &shell.Toast{Kind: claims.Kind, Message: claims.Message}, nil
}
