package service

import (
	"errors"
	"strings"

	"partnerly/config"
	"partnerly/internal/auth"
	"partnerly/internal/domain"
	"partnerly/internal/models"
	"partnerly/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists    = errors.New("email already registered")
	ErrCustomerExists = errors.New("customer identity already registered")
	ErrInvalidCreds   = errors.New("invalid email or password")
)

type AuthService struct {
	cfg         *config.Config
	partnerRepo *repository.PartnerRepository
}

func NewAuthService(cfg *config.Config, partnerRepo *repository.PartnerRepository) *AuthService {
	return &AuthService{cfg: cfg, partnerRepo: partnerRepo}
}

// Register onboards a partner: base tier, KYC pending, fresh referral code.
func (s *AuthService) Register(name, email, password, customerID string) (*models.Partner, string, string, error) {
	_, err := s.partnerRepo.GetByEmail(email)
	if err == nil {
		return nil, "", "", ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", err
	}
	p := &models.Partner{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RolePartner,
		CustomerID:   customerID,
		Tier:         domain.TierBronze,
		Status:       domain.PartnerActive,
		KYCStatus:    domain.KYCPending,
	}
	if err := s.partnerRepo.Create(p); err != nil {
		if strings.Contains(err.Error(), "customer_id") {
			return nil, "", "", ErrCustomerExists
		}
		return nil, "", "", err
	}
	access, refresh, err := s.issueTokens(p)
	return p, access, refresh, err
}

func (s *AuthService) Login(email, password string) (*models.Partner, string, string, error) {
	p, err := s.partnerRepo.GetByEmail(email)
	if err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, refresh, err := s.issueTokens(p)
	return p, access, refresh, err
}

func (s *AuthService) Refresh(refreshToken string) (string, error) {
	id, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return "", err
	}
	p, err := s.partnerRepo.GetByID(id)
	if err != nil {
		return "", err
	}
	return auth.GenerateAccessToken(&s.cfg.JWT, p.ID, p.Email, p.Role)
}

func (s *AuthService) issueTokens(p *models.Partner) (string, string, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, p.ID, p.Email, p.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, p.ID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
