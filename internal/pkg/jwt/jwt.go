package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/kerjalabs/attendance-backend-go/internal/domain/user"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Identity is the authenticated principal carried by a verified token. Tokens
// are issued by the identity provider and verified here with the shared
// HS256 secret.
type Identity struct {
	UserID      string
	WorkplaceID string
	Role        user.Role
}

type Service interface {
	JWTAuth() *jwtauth.JWTAuth
	GenerateStreamToken(identity Identity) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString string) (Identity, error)
}

type JWTService struct {
	secretKey string
	tokenAuth *jwtauth.JWTAuth
}

func NewJWTService(secretKey string) Service {
	return &JWTService{
		secretKey: secretKey,
		tokenAuth: jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

// GenerateStreamToken issues a short-lived token for SSE connections, which
// authenticate via query parameter because EventSource cannot set headers.
func (j *JWTService) GenerateStreamToken(identity Identity) (string, int, error) {
	// Stream tokens are short-lived (5 minutes)
	expiresIn := 300
	expiresAt := time.Now().Add(5 * time.Minute).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":      identity.UserID,
		"workplace_id": identity.WorkplaceID,
		"role":         string(identity.Role),
		"type":         "stream",
		"exp":          expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, expiresIn, nil
}

// ValidateStreamToken validates a stream token and returns the identity it
// carries.
func (j *JWTService) ValidateStreamToken(tokenString string) (Identity, error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return Identity{}, err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "stream" {
		return Identity{}, jwt.ErrInvalidJWT()
	}

	return identityFromToken(token)
}

func identityFromToken(token jwt.Token) (Identity, error) {
	userID, ok := stringClaim(token, "user_id")
	if !ok {
		return Identity{}, jwt.ErrInvalidJWT()
	}
	workplaceID, ok := stringClaim(token, "workplace_id")
	if !ok {
		return Identity{}, jwt.ErrInvalidJWT()
	}
	role, ok := stringClaim(token, "role")
	if !ok {
		return Identity{}, jwt.ErrInvalidJWT()
	}

	return Identity{UserID: userID, WorkplaceID: workplaceID, Role: user.Role(role)}, nil
}

func stringClaim(token jwt.Token, name string) (string, bool) {
	val, ok := token.Get(name)
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok && s != ""
}

// FromContext extracts the authenticated identity placed in the request
// context by the verifier middleware.
func FromContext(ctx context.Context) (Identity, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return Identity{}, fmt.Errorf("user_id claim is missing or invalid")
	}

	workplaceID, ok := claims["workplace_id"].(string)
	if !ok || workplaceID == "" {
		return Identity{}, fmt.Errorf("workplace_id claim is missing or invalid")
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return Identity{}, fmt.Errorf("role claim is missing or invalid")
	}

	return Identity{UserID: userID, WorkplaceID: workplaceID, Role: user.Role(role)}, nil
}
