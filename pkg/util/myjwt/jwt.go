package myjwt

import (
	"errors"
	"time"

	"OrderPulse/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleCustomer   = "customer"
	RoleStoreOwner = "storeOwner"
	RoleAdmin      = "admin"
)

type CustomClaims struct {
	Uuid     string `json:"uuid"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// IsStaff 门店侧角色
func (c *CustomClaims) IsStaff() bool {
	return c.Role == RoleStoreOwner || c.Role == RoleAdmin
}

// Signer HS256 签发与校验
type Signer struct {
	key         []byte
	issuer      string
	expireHours int
}

func NewSigner(key, issuer string, expireHours int) *Signer {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &Signer{key: []byte(key), issuer: issuer, expireHours: expireHours}
}

// FromConfig 使用 jwtConfig
func FromConfig() *Signer {
	conf := config.GetConfig()
	issuer := conf.JwtConfig.Issuer
	if issuer == "" {
		issuer = conf.MainConfig.AppName
	}
	return NewSigner(conf.JwtConfig.Key, issuer, conf.JwtConfig.ExpireHours)
}

func (s *Signer) GenerateToken(uuid, username, role string) (string, error) {
	if len(s.key) == 0 {
		return "", errors.New("jwt key is empty")
	}
	if role == "" {
		role = RoleCustomer
	}

	now := time.Now()
	claims := CustomClaims{
		Uuid:     uuid,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.key)
}

func (s *Signer) ParseToken(tokenString string) (*CustomClaims, error) {
	if len(s.key) == 0 {
		return nil, errors.New("jwt key is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role == "" {
		claims.Role = RoleCustomer
	}
	return claims, nil
}
