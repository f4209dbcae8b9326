package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elskow/tourfurr/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	config     *config.AuthConfig
	log        *zap.Logger
	repository Repository
	now        func() time.Time
	newID      func() string

	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(config *config.AuthConfig, log *zap.Logger, repo Repository) *Service {
	return &Service{
		config:     config,
		log:        log,
		repository: repo,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) cost() int {
	if s.config.PasswordHashCost >= bcrypt.MinCost && s.config.PasswordHashCost <= bcrypt.MaxCost {
		return s.config.PasswordHashCost
	}
	return bcrypt.DefaultCost
}

func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	return string(bytes), err
}

func (s *Service) CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// burnCompare spends roughly one bcrypt comparison so that unknown emails
// take as long to reject as wrong passwords.
func (s *Service) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tourfurr-dummy-password"), s.cost())
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

func (s *Service) GenerateToken(identity *Identity) (*Session, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TokenExpiration)
	claims := &Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &Session{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
		IdentityID:  identity.ID,
	}, nil
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// SignUp creates a credential for email. Confirmed identities are used when
// the email was already proven, as with migrated legacy accounts.
func (s *Service) SignUp(ctx context.Context, email, password string, confirmed bool) (*Identity, error) {
	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	identity := &Identity{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hashedPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if confirmed {
		identity.EmailConfirmedAt = &now
	}

	if err := s.repository.Create(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	identity, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			s.burnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.CheckPasswordHash(password, identity.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.repository.TouchSignIn(ctx, identity.ID, s.now().UTC()); err != nil {
		s.log.Warn("failed to record sign-in", zap.String("identity_id", identity.ID), zap.Error(err))
	}

	return s.GenerateToken(identity)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.repository.FindByEmail(ctx, email)
}

func (s *Service) FindByID(ctx context.Context, id string) (*Identity, error) {
	return s.repository.FindByID(ctx, id)
}

func (s *Service) ConfirmEmail(ctx context.Context, email string) error {
	return s.repository.ConfirmEmail(ctx, email, s.now().UTC())
}

func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	hashedPassword, err := s.HashPassword(password)
	if err != nil {
		return err
	}
	return s.repository.UpdatePassword(ctx, id, hashedPassword)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repository.Delete(ctx, id)
}
