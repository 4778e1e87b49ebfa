package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
	pstrings "civreg/pkg/platform/strings"
	"civreg/pkg/requestcontext"
)

// Claims represents the JWT claims for our access tokens.
type Claims struct {
	Scopes         []string `json:"scope"`
	Role           string   `json:"role"`
	UserType       string   `json:"userType"`
	OfficeLocation string   `json:"officeLocation"`
	jwt.RegisteredClaims
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateAccessToken signs a token carrying the caller's identity, role,
// scopes and office location.
func (s *JWTService) GenerateAccessToken(caller requestcontext.CallerInfo, expiresIn time.Duration) (string, error) {
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Scopes:         caller.Scopes,
		Role:           caller.Role,
		UserType:       string(caller.UserType),
		OfficeLocation: caller.OfficeLocation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.UserID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateToken parses and verifies a token, returning the caller it
// represents. Satisfies middleware.TokenValidator.
func (s *JWTService) ValidateToken(tokenString string) (requestcontext.CallerInfo, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return requestcontext.CallerInfo{}, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return requestcontext.CallerInfo{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return requestcontext.CallerInfo{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return requestcontext.CallerInfo{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return requestcontext.CallerInfo{
		UserID:         claims.Subject,
		Role:           claims.Role,
		UserType:       requestcontext.UserType(claims.UserType),
		Scopes:         pstrings.DedupeAndTrim(claims.Scopes),
		OfficeLocation: claims.OfficeLocation,
	}, nil
}
