package jwttoken

import (
	authmw "aidtrace/pkg/platform/middleware/auth"
)

type validatorFunc func(token string) (*authmw.JWTClaims, error)

func (f validatorFunc) ValidateToken(token string) (*authmw.JWTClaims, error) { return f(token) }

// Validator exposes the service to auth.RequireCaller. Only the subject and
// token id cross into the middleware.
func (s *JWTService) Validator() authmw.JWTValidator {
	return validatorFunc(func(token string) (*authmw.JWTClaims, error) {
		claims, err := s.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		return &authmw.JWTClaims{Subject: claims.Subject, JTI: claims.ID}, nil
	})
}
