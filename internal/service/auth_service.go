package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrDeviceBindingViolation = errors.New("device fingerprint does not match the registered device")
	ErrSessionInvalidated     = errors.New("login invalidated by a newer login")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields. Student
// tokens carry the device fingerprint presented at login so every
// authenticated call can be re-checked against it.
type Claims struct {
	jwt.RegisteredClaims
	TokenType         TokenType `json:"token_type"`
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"` // Student only
}

// AuthService handles registration, login, JWT issuance and the
// device-binding check.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	students StudentStore
	admins   AdminStore
	log      zerolog.Logger
}

func NewAuthService(cfg *config.Config, rdb *redis.Client, students StudentStore, admins AdminStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:      cfg,
		rdb:      rdb,
		students: students,
		admins:   admins,
		log:      log.With().Str("component", "auth_service").Logger(),
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RegisterStudent creates a student account, freezing the presented device
// fingerprint as the only device allowed to log in afterwards, and returns
// a fresh token. Duplicate roll numbers surface as
// repository.ErrDuplicateRollNumber.
func (s *AuthService) RegisterStudent(ctx context.Context, req *model.RegisterStudentRequest) (*model.StudentLoginResponse, error) {
	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	student := &model.Student{
		ID:                uuid.New(),
		RollNumber:        req.RollNumber,
		FullName:          req.FullName,
		Department:        req.Department,
		Semester:          req.Semester,
		PasswordHash:      hash,
		DeviceFingerprint: req.DeviceFingerprint,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}

	token, err := s.generateStudentToken(ctx, student, req.DeviceFingerprint)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("roll_number", student.RollNumber).Msg("student registered")
	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// LoginStudent authenticates a student. A fingerprint different from the one
// frozen at registration is rejected and queued for the security audit
// trail; the password is still verified first so a mismatch probe cannot be
// used as a credential oracle.
func (s *AuthService) LoginStudent(ctx context.Context, req *model.StudentLoginRequest) (*model.StudentLoginResponse, error) {
	student, err := s.students.GetByRollNumber(ctx, req.RollNumber)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.CheckPassword(student.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	if student.DeviceFingerprint != req.DeviceFingerprint {
		s.queueSecurityLog(ctx, student, req.DeviceFingerprint, "login rejected")
		s.log.Warn().
			Str("roll_number", student.RollNumber).
			Msg("device binding violation on login")
		return nil, ErrDeviceBindingViolation
	}

	token, err := s.generateStudentToken(ctx, student, req.DeviceFingerprint)
	if err != nil {
		return nil, err
	}

	return &model.StudentLoginResponse{Token: token, Student: *student}, nil
}

// LoginAdmin authenticates an admin by email and password.
func (s *AuthService) LoginAdmin(ctx context.Context, req *model.AdminLoginRequest) (*model.AdminLoginResponse, error) {
	admin, err := s.admins.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.CheckPassword(admin.PasswordHash, req.Password); err != nil {
		return nil, err
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   admin.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: TokenTypeAdmin,
		UserID:    admin.ID.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &model.AdminLoginResponse{Token: signed, Admin: *admin}, nil
}

// generateStudentToken signs a JWT and records its JTI as the student's only
// active login. A newer login overwrites the JTI, which invalidates every
// token issued before it.
func (s *AuthService) generateStudentToken(ctx context.Context, student *model.Student, fingerprint string) (string, error) {
	jti := uuid.New().String()
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   student.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType:         TokenTypeStudent,
		UserID:            student.ID.String(),
		DeviceFingerprint: fingerprint,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	loginKey := config.CacheKey.StudentLoginKey(student.ID.String())
	if err := s.rdb.Set(ctx, loginKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store login: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// ValidateStudentLogin checks that the token's JTI is still the student's
// active login.
func (s *AuthService) ValidateStudentLogin(ctx context.Context, studentID, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentLoginKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check login: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// GetStudent loads the student behind a set of claims.
func (s *AuthService) GetStudent(ctx context.Context, claims *Claims) (*model.Student, error) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return s.students.GetByID(ctx, id)
}

// GetAdmin loads the admin behind a set of claims.
func (s *AuthService) GetAdmin(ctx context.Context, claims *Claims) (*model.Admin, error) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	return s.admins.GetByID(ctx, id)
}

// ReportDeviceMismatch queues an audit record for a request that presented a
// fingerprint different from the one bound to the token. Used by the device
// middleware for per-request re-validation.
func (s *AuthService) ReportDeviceMismatch(ctx context.Context, claims *Claims, actual, details string) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return
	}
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("student_id", claims.UserID).Msg("load student for audit record")
		return
	}
	s.queueSecurityLog(ctx, student, actual, details)
}

// queueSecurityLog pushes an audit record onto the persistence queue. The
// worker drains it in batches; a push failure only loses the audit entry,
// never the rejection itself, so it is logged and swallowed.
func (s *AuthService) queueSecurityLog(ctx context.Context, student *model.Student, actual, details string) {
	job := model.SecurityLogJob{
		StudentID:           student.ID.String(),
		RollNumber:          student.RollNumber,
		EventType:           model.SecurityEventDeviceMismatch,
		ExpectedFingerprint: student.DeviceFingerprint,
		ActualFingerprint:   actual,
		Details:             details,
		Timestamp:           time.Now().Unix(),
	}
	data, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal security log job")
		return
	}
	if err := s.rdb.RPush(ctx, config.QueueKey.SecurityLogQueue, data).Err(); err != nil {
		s.log.Error().Err(err).Msg("queue security log job")
	}
}
