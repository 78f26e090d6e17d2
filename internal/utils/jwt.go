package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserTokenClaims identify a registered username.
type UserTokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RoomTokenClaims prove validated membership of one room. Realtime
// operations trust the claims, never a client-supplied username.
type RoomTokenClaims struct {
	RoomCode string `json:"room_code"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func GenerateUserToken(username string, secret []byte) (string, error) {
	claims := &UserTokenClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ValidateUserToken(tokenStr string, secret []byte) (*UserTokenClaims, error) {
	claims := &UserTokenClaims{}
	if err := parseToken(tokenStr, claims, secret); err != nil {
		return nil, err
	}
	return claims, nil
}

func GenerateRoomToken(roomCode, username string, secret []byte) (string, error) {
	claims := &RoomTokenClaims{
		RoomCode: roomCode,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func ValidateRoomToken(tokenStr string, secret []byte) (*RoomTokenClaims, error) {
	claims := &RoomTokenClaims{}
	if err := parseToken(tokenStr, claims, secret); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseToken(tokenStr string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// ExtractTokenFromHeader pulls the bearer token out of an Authorization header.
func ExtractTokenFromHeader(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header")
	}
	return parts[1], nil
}
