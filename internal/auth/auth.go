// Package auth parses the CRM's access tokens into a request principal.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arvale/aod-service/internal/model"
)

var ErrInvalidToken = errors.New("invalid access token")

type Claims struct {
	AgentID   string `json:"agent_id"`
	AgentType string `json:"agent_type"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

func (p *Parser) Parse(token string) (model.Principal, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	agentID, err := uuid.Parse(claims.AgentID)
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}
	return model.Principal{
		AgentID: agentID,
		Type:    model.AgentType(claims.AgentType),
	}, nil
}
