package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"icredit2.org/internal/ids"
)

// AdminRoleName is the role bootstrapped for every new company.
const AdminRoleName = "admin"

// PermissionAll is the unrestricted permission marker carried by the
// bootstrapped admin role.
const PermissionAll = "all"

// Service coordinates registration, login and token lifecycle. Registration
// persists as a single transaction; login and refresh never touch prior
// session state, so concurrent sessions are allowed.
type Service struct {
	store    Store
	tokens   *TokenService
	resolver Resolver
	logger   *zap.Logger
	now      func() time.Time
}

// NewService constructs the orchestrator.
func NewService(store Store, tokens *TokenService, resolver Resolver, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		tokens:   tokens,
		resolver: resolver,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// AccessTTL exposes the configured access token lifetime for response shaping.
func (s *Service) AccessTTL() time.Duration { return s.tokens.AccessTTL() }

// TokenPair bundles a stateless access token with its stateful refresh
// counterpart.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RegisterCompanyInput carries the registration request.
type RegisterCompanyInput struct {
	Name             string
	Domain           string
	OwnerEmail       string
	OwnerPassword    string
	OwnerDisplayName string
}

// Registration is the result of a successful company registration.
type Registration struct {
	Company Company
	Owner   User
	Tokens  TokenPair
}

// RegisterCompany creates the company, its admin role and its verified owner,
// then issues a token pair. The unit is atomic: any failure rolls back every
// persisted effect.
func (s *Service) RegisterCompany(ctx context.Context, in RegisterCompanyInput) (Registration, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.OwnerEmail)
	displayName := strings.TrimSpace(in.OwnerDisplayName)
	domain := strings.TrimSpace(strings.ToLower(in.Domain))

	if name == "" {
		return Registration{}, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}
	if email == "" || !strings.Contains(email, "@") {
		return Registration{}, fmt.Errorf("%w: valid owner email is required", ErrInvalidInput)
	}
	if in.OwnerPassword == "" {
		return Registration{}, fmt.Errorf("%w: owner password is required", ErrInvalidInput)
	}
	if displayName == "" {
		return Registration{}, fmt.Errorf("%w: owner display name is required", ErrInvalidInput)
	}

	hash, err := HashPassword(in.OwnerPassword)
	if err != nil {
		return Registration{}, err
	}

	var reg Registration
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Store) error {
		// The company does not exist yet, so the email check is effectively
		// global in both uniqueness modes.
		taken, err := tx.Users(ctx).ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: email already registered", ErrConflict)
		}
		exists, err := tx.Companies(ctx).ExistsByName(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: company name already exists", ErrConflict)
		}

		company := &Company{ID: ids.New(), Name: name, Domain: domain}
		if err := tx.Companies(ctx).Create(ctx, company); err != nil {
			return err
		}

		adminRole := &Role{
			ID:          ids.New(),
			CompanyID:   company.ID,
			Name:        AdminRoleName,
			Permissions: []string{PermissionAll},
		}
		if err := tx.Roles(ctx).Create(ctx, adminRole); err != nil {
			return err
		}

		// Owner accounts are trusted by construction; there is no email
		// verification step.
		owner := &User{
			ID:           ids.New(),
			CompanyID:    company.ID,
			Email:        email,
			DisplayName:  displayName,
			PasswordHash: hash,
			Verified:     true,
		}
		if err := tx.Users(ctx).Create(ctx, owner); err != nil {
			return err
		}
		if err := tx.Roles(ctx).Assign(ctx, owner.ID, adminRole.ID); err != nil {
			return err
		}
		owner.Roles = []Role{*adminRole}

		pair, err := s.issueTokens(ctx, tx, owner.ID, company.ID)
		if err != nil {
			return err
		}
		reg = Registration{Company: *company, Owner: *owner, Tokens: pair}
		return nil
	})
	if err != nil {
		return Registration{}, err
	}

	s.logger.Info("company registered",
		zap.String("company_id", reg.Company.ID),
		zap.String("owner_id", reg.Owner.ID),
	)
	return reg, nil
}

// Login resolves the identity per the active strategy, verifies the password
// and issues a fresh token pair. Every resolution or credential failure
// collapses into ErrInvalidCredentials so callers cannot tell a missing user
// from a wrong password.
func (s *Service) Login(ctx context.Context, email, password, tenantHint string) (TokenPair, Principal, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	principal, err := s.resolver.Resolve(ctx, s.resolver.LoginIdentifier(email, tenantHint))
	if err != nil {
		s.logger.Debug("login resolution failed", zap.Error(err))
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(principal.User.PasswordHash, password); err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	pair, err := s.issueTokens(ctx, s.store, principal.User.ID, principal.CompanyID())
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Authenticate validates an access token and resolves its subject into a
// principal for the request.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return Principal{}, err
	}
	principal, err := s.resolver.Resolve(ctx, ByUserID{UserID: claims.Subject})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoCompany) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, err
	}
	return principal, nil
}

// Refresh exchanges a live refresh token for a fresh pair, revoking the
// presented token. A hash mismatch on an existing record also revokes it.
func (s *Service) Refresh(ctx context.Context, raw string) (TokenPair, Principal, error) {
	id, secret, err := SplitRefreshToken(raw)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	tokens := s.store.RefreshTokens(ctx)
	rec, err := tokens.Find(ctx, id)
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if rec.Revoked || s.now().After(rec.ExpiresAt) {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}
	if !VerifyRefreshSecret(rec.TokenHash, secret) {
		_ = tokens.MarkRevoked(ctx, rec.ID)
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	principal, err := s.resolver.Resolve(ctx, ByUserID{UserID: rec.UserID})
	if err != nil {
		return TokenPair{}, Principal{}, ErrInvalidCredentials
	}

	if err := tokens.MarkRevoked(ctx, rec.ID); err != nil {
		return TokenPair{}, Principal{}, err
	}
	pair, err := s.issueTokens(ctx, s.store, principal.User.ID, principal.CompanyID())
	if err != nil {
		return TokenPair{}, Principal{}, err
	}
	return pair, principal, nil
}

// Logout revokes the presented refresh token server-side when one is
// supplied. Clearing the client-held access credential is the gateway's job;
// a missing or unrecognized token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	id, secret, err := SplitRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	tokens := s.store.RefreshTokens(ctx)
	rec, err := tokens.Find(ctx, id)
	if err != nil {
		return nil
	}
	if !VerifyRefreshSecret(rec.TokenHash, secret) {
		return nil
	}
	return tokens.MarkRevoked(ctx, rec.ID)
}

func (s *Service) issueTokens(ctx context.Context, store Store, userID, companyID string) (TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(userID, companyID, nil)
	if err != nil {
		return TokenPair{}, err
	}
	raw, rec, err := s.tokens.MintRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := store.RefreshTokens(ctx).Create(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     raw,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}
