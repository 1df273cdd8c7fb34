package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/invigilo/proctor-backend/internal/config"
	"github.com/invigilo/proctor-backend/internal/model"
	"github.com/invigilo/proctor-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func newAuthHarness(t *testing.T) (*AuthService, *memStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig()
	cfg.JWTSecret = "test-jwt-secret"
	cfg.JWTExpiry = time.Hour
	cfg.BcryptCost = bcrypt.MinCost

	store := newMemStore()
	svc := NewAuthService(cfg, rdb, memStudentStore{store}, memAdminStore{store}, zerolog.Nop())
	return svc, store, mr
}

func registerReq() *model.RegisterStudentRequest {
	return &model.RegisterStudentRequest{
		RollNumber:        "CS-2024-007",
		FullName:          "Ravi Nair",
		Department:        "CS",
		Semester:          4,
		Password:          "hunter22",
		DeviceFingerprint: "device-fingerprint-one",
	}
}

func TestRegisterStudentIssuesBoundToken(t *testing.T) {
	svc, _, mr := newAuthHarness(t)
	ctx := context.Background()

	resp, err := svc.RegisterStudent(ctx, registerReq())
	if err != nil {
		t.Fatalf("RegisterStudent: %v", err)
	}

	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeStudent {
		t.Fatalf("token type = %s, want student", claims.TokenType)
	}
	if claims.DeviceFingerprint != "device-fingerprint-one" {
		t.Fatalf("fingerprint claim = %q", claims.DeviceFingerprint)
	}
	if claims.UserID != resp.Student.ID.String() {
		t.Fatalf("user id = %s, want %s", claims.UserID, resp.Student.ID)
	}

	// Registration counts as the first login.
	jti, err := mr.Get("login:" + resp.Student.ID.String())
	if err != nil || jti != claims.ID {
		t.Fatalf("active login jti = %q (err %v), want %q", jti, err, claims.ID)
	}
}

func TestRegisterDuplicateRollNumber(t *testing.T) {
	svc, _, _ := newAuthHarness(t)
	ctx := context.Background()

	if _, err := svc.RegisterStudent(ctx, registerReq()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.RegisterStudent(ctx, registerReq()); !errors.Is(err, repository.ErrDuplicateRollNumber) {
		t.Fatalf("err = %v, want ErrDuplicateRollNumber", err)
	}
}

func TestLoginStudent(t *testing.T) {
	svc, _, _ := newAuthHarness(t)
	ctx := context.Background()

	if _, err := svc.RegisterStudent(ctx, registerReq()); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := svc.LoginStudent(ctx, &model.StudentLoginRequest{
		RollNumber:        "CS-2024-007",
		Password:          "hunter22",
		DeviceFingerprint: "device-fingerprint-one",
	})
	if err != nil {
		t.Fatalf("LoginStudent: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}

	_, err = svc.LoginStudent(ctx, &model.StudentLoginRequest{
		RollNumber:        "CS-2024-007",
		Password:          "wrong-password",
		DeviceFingerprint: "device-fingerprint-one",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}

	_, err = svc.LoginStudent(ctx, &model.StudentLoginRequest{
		RollNumber:        "no-such-roll",
		Password:          "hunter22",
		DeviceFingerprint: "device-fingerprint-one",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown roll: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRejectsForeignDevice(t *testing.T) {
	svc, _, mr := newAuthHarness(t)
	ctx := context.Background()

	reg, err := svc.RegisterStudent(ctx, registerReq())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = svc.LoginStudent(ctx, &model.StudentLoginRequest{
		RollNumber:        "CS-2024-007",
		Password:          "hunter22",
		DeviceFingerprint: "a-different-device",
	})
	if !errors.Is(err, ErrDeviceBindingViolation) {
		t.Fatalf("err = %v, want ErrDeviceBindingViolation", err)
	}

	// The rejection is queued for the audit trail.
	jobs, err := mr.List(config.QueueKey.SecurityLogQueue)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("queued jobs = %v (err %v), want exactly one", jobs, err)
	}
	var job model.SecurityLogJob
	if err := json.Unmarshal([]byte(jobs[0]), &job); err != nil {
		t.Fatalf("unmarshal job: %v", err)
	}
	if job.EventType != model.SecurityEventDeviceMismatch {
		t.Fatalf("event type = %q", job.EventType)
	}
	if job.StudentID != reg.Student.ID.String() || job.ActualFingerprint != "a-different-device" {
		t.Fatalf("job = %+v", job)
	}
}

func TestNewerLoginInvalidatesOlderToken(t *testing.T) {
	svc, _, _ := newAuthHarness(t)
	ctx := context.Background()

	first, err := svc.RegisterStudent(ctx, registerReq())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	firstClaims, _ := svc.ValidateToken(first.Token)

	second, err := svc.LoginStudent(ctx, &model.StudentLoginRequest{
		RollNumber:        "CS-2024-007",
		Password:          "hunter22",
		DeviceFingerprint: "device-fingerprint-one",
	})
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	secondClaims, _ := svc.ValidateToken(second.Token)

	if err := svc.ValidateStudentLogin(ctx, firstClaims.UserID, firstClaims.ID); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("old token: err = %v, want ErrSessionInvalidated", err)
	}
	if err := svc.ValidateStudentLogin(ctx, secondClaims.UserID, secondClaims.ID); err != nil {
		t.Fatalf("new token rejected: %v", err)
	}
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _, _ := newAuthHarness(t)
	ctx := context.Background()

	resp, err := svc.RegisterStudent(ctx, registerReq())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.ValidateToken(resp.Token + "x"); err == nil {
		t.Fatal("tampered token accepted")
	}
	if _, err := svc.ValidateToken("not-a-jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestLoginAdmin(t *testing.T) {
	svc, store, _ := newAuthHarness(t)
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("sup3rvisor"), bcrypt.MinCost)
	admin := &model.Admin{
		ID:           uuid.New(),
		Email:        "staff@example.edu",
		FullName:     "Exam Office",
		PasswordHash: string(hash),
	}
	store.admins[admin.ID] = admin

	resp, err := svc.LoginAdmin(ctx, &model.AdminLoginRequest{Email: "staff@example.edu", Password: "sup3rvisor"})
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
	claims, err := svc.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TokenType != TokenTypeAdmin || claims.DeviceFingerprint != "" {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := svc.LoginAdmin(ctx, &model.AdminLoginRequest{Email: "staff@example.edu", Password: "nope"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}
