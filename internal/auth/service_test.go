package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"workforce-backend/internal/companies"
	"workforce-backend/internal/shared/apperr"
	sharedauth "workforce-backend/internal/shared/auth"
	"workforce-backend/internal/shared/mailer"
	"workforce-backend/internal/users"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return m.err
}

func (m *recordingMailer) last() mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Email{}
	}
	return m.sent[len(m.sent)-1]
}

type fixture struct {
	svc     *Service
	users   *users.MemoryRepo
	mail    *recordingMailer
	company companies.Company
	admin   users.User
}

const adminPassword = "admin-secret-1"

func newFixture(t *testing.T, seats int) fixture {
	t.Helper()
	userRepo := users.NewMemoryRepo()
	companyRepo := companies.NewMemoryRepo(userRepo)
	signer, err := sharedauth.NewSigner("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	hash, err := sharedauth.HashPassword(adminPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	company := companies.Company{
		ID:           "co-1",
		Name:         "Acme",
		Code:         "acme",
		Plan:         companies.PlanFree,
		MaxEmployees: seats,
	}
	admin := users.User{
		ID:               "admin-1",
		CompanyID:        company.ID,
		Name:             "Ada",
		Email:            "ada@acme.io",
		PasswordHash:     hash,
		Role:             users.RoleAdmin,
		Verified:         true,
		OnboardingStatus: users.OnboardingApproved,
	}
	if err := companyRepo.CreateWithAdmin(context.Background(), company, admin); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	mail := &recordingMailer{}
	svc := &Service{
		Users:     userRepo,
		Companies: companyRepo,
		Signer:    signer,
		Mailer:    mail,
		BaseURL:   "http://api.test/",
	}
	return fixture{svc: svc, users: userRepo, mail: mail, company: company, admin: admin}
}

func tokenFromLink(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "http://")
	if idx < 0 {
		t.Fatalf("no link in %q", body)
	}
	link := strings.TrimSpace(body[idx:])
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if u.Path != "/api/v1/auth/verify" {
		t.Fatalf("unexpected verify path %q", u.Path)
	}
	return u.Query().Get("token")
}

func TestLoginIssuesSession(t *testing.T) {
	f := newFixture(t, 10)
	session, err := f.svc.Login(context.Background(), LoginInput{Email: "ADA@acme.io", Password: adminPassword})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := f.svc.Signer.VerifySession(session.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != f.admin.ID || claims.CompanyID != f.company.ID {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", session.ExpiresAt)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t, 10)
	cases := []LoginInput{
		{Email: "ada@acme.io", Password: "wrong-password"},
		{Email: "nobody@acme.io", Password: adminPassword},
	}
	for _, in := range cases {
		_, err := f.svc.Login(context.Background(), in)
		if !apperr.IsKind(err, apperr.KindAuth) {
			t.Fatalf("expected auth error for %s, got %v", in.Email, err)
		}
		if err.Error() != "Invalid email or password" {
			t.Fatalf("unexpected message %q", err.Error())
		}
	}

	_, err := f.svc.Login(context.Background(), LoginInput{Email: "ada@acme.io"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSignupVerifyThenLogin(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	in := SignupInput{Name: " Bob ", Email: "bob@acme.io", Password: "password-1", CompanyCode: "ACME"}

	user, err := f.svc.Signup(ctx, in)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.CompanyID != f.company.ID || user.Role != users.RoleUser || user.Verified {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.Name != "Bob" || user.OnboardingStatus != users.OnboardingPending {
		t.Fatalf("unexpected profile %+v", user)
	}

	_, err = f.svc.Login(ctx, LoginInput{Email: in.Email, Password: in.Password})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind != apperr.KindForbidden || ae.Fields["needsVerification"] != true {
		t.Fatalf("expected needsVerification, got %v", err)
	}

	email := f.mail.last()
	if len(email.To) != 1 || email.To[0] != "bob@acme.io" {
		t.Fatalf("unexpected mail recipients %v", email.To)
	}
	verified, err := f.svc.Verify(ctx, tokenFromLink(t, email.Body))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Verified {
		t.Fatalf("expected verified user")
	}
	if _, err := f.svc.Login(ctx, LoginInput{Email: in.Email, Password: in.Password}); err != nil {
		t.Fatalf("login after verify: %v", err)
	}
}

func TestSignupErrors(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.Signup(ctx, SignupInput{Name: "X", Email: "x@acme.io", Password: "password-1", CompanyCode: "nope"})
	if !apperr.IsKind(err, apperr.KindValidation) || err.Error() != "Invalid company code" {
		t.Fatalf("expected invalid company code, got %v", err)
	}

	_, err = f.svc.Signup(ctx, SignupInput{Name: "X", Email: "ada@acme.io", Password: "password-1", CompanyCode: "acme"})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = f.svc.Signup(ctx, SignupInput{Name: "X", Email: "not-an-email", Password: "short", CompanyCode: "acme"})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if _, err := f.svc.Signup(ctx, SignupInput{Name: "B", Email: "b@acme.io", Password: "password-1", CompanyCode: "acme"}); err != nil {
		t.Fatalf("second seat: %v", err)
	}
	_, err = f.svc.Signup(ctx, SignupInput{Name: "C", Email: "c@acme.io", Password: "password-1", CompanyCode: "acme"})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected seat limit, got %v", err)
	}
}

func TestSignupSurvivesMailFailure(t *testing.T) {
	f := newFixture(t, 10)
	f.mail.err = errors.New("smtp down")
	user, err := f.svc.Signup(context.Background(), SignupInput{Name: "B", Email: "b@acme.io", Password: "password-1", CompanyCode: "acme"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := f.users.GetByID(context.Background(), user.ID); err != nil {
		t.Fatalf("user should exist: %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	if err := f.svc.ResendVerification(ctx, "ghost@acme.io"); err != nil {
		t.Fatalf("unknown address should be ignored: %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "ada@acme.io"); err != nil {
		t.Fatalf("verified address: %v", err)
	}
	if len(f.mail.sent) != 0 {
		t.Fatalf("expected no mail, got %d", len(f.mail.sent))
	}

	if _, err := f.svc.Signup(ctx, SignupInput{Name: "B", Email: "b@acme.io", Password: "password-1", CompanyCode: "acme"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "b@acme.io"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if len(f.mail.sent) != 2 {
		t.Fatalf("expected 2 mails, got %d", len(f.mail.sent))
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	f := newFixture(t, 10)
	if _, err := f.svc.Verify(context.Background(), ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	session, _, err := f.svc.Signer.IssueSession(f.admin.ID, f.company.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := f.svc.Verify(context.Background(), session); !apperr.IsKind(err, apperr.KindAuth) {
		t.Fatalf("session token must not verify e-mail, got %v", err)
	}
}

func TestGoogleLoginLinksVerifiedEmail(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	profile := GoogleProfile{ID: "g-1", Email: "ada@acme.io", Name: "Ada", VerifiedEmail: true}

	session, err := f.svc.GoogleLogin(ctx, profile)
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if session.User.ID != f.admin.ID || session.User.GoogleID != "g-1" {
		t.Fatalf("unexpected session user %+v", session.User)
	}
	stored, err := f.users.GetByGoogleID(ctx, "g-1")
	if err != nil || stored.ID != f.admin.ID {
		t.Fatalf("expected linked account, got %+v %v", stored, err)
	}

	profile.Email = "changed@elsewhere.io"
	if _, err := f.svc.GoogleLogin(ctx, profile); err != nil {
		t.Fatalf("login by google id: %v", err)
	}
}

func TestGoogleLoginRejects(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.GoogleLogin(ctx, GoogleProfile{ID: "g-2", Email: "ada@acme.io"})
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected unverified e-mail rejection, got %v", err)
	}
	_, err = f.svc.GoogleLogin(ctx, GoogleProfile{ID: "g-2", Email: "stranger@x.io", VerifiedEmail: true})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	_, err = f.svc.GoogleLogin(ctx, GoogleProfile{})
	if !apperr.IsKind(err, apperr.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
}
