package accounts

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendcertificates/server/internal/db"
	"github.com/sendcertificates/server/internal/mailer"
	"github.com/sendcertificates/server/internal/models"
	"github.com/sendcertificates/server/internal/security"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	conn  *gorm.DB
	svc   *Service
	mail  *mailer.Recorder
	clock *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "accounts-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	rec := &mailer.Recorder{}
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(conn, Options{
		OwnerEmail: "Owner@Example.com",
		BaseURL:    "https://app.example/",
		Mailer:     rec,
		Now:        clock.Now,
	})
	return &fixture{conn: conn, svc: svc, mail: rec, clock: clock}
}

func (f *fixture) createUser(t *testing.T, email, password string, mutate func(*models.User)) *models.User {
	t.Helper()
	user := models.User{Email: email, Name: strings.Split(email, "@")[0]}
	if password != "" {
		hash, err := security.HashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		user.Password = hash
	}
	if mutate != nil {
		mutate(&user)
	}
	if errCreate := f.conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user %s: %v", email, errCreate)
	}
	return &user
}

func (f *fixture) reload(t *testing.T, id string) models.User {
	t.Helper()
	var user models.User
	if errFind := f.conn.Where("id = ?", id).Take(&user).Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	return user
}

func count(t *testing.T, conn *gorm.DB, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if errCount := q.Count(&n).Error; errCount != nil {
		t.Fatalf("count %T: %v", model, errCount)
	}
	return n
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "nopass@example.com", "", nil)
	f.createUser(t, "member@example.com", "password123", nil)

	cases := []struct{ email, password string }{
		{"missing@example.com", "password123"},
		{"nopass@example.com", ""},
		{"nopass@example.com", "anything"},
		{"member@example.com", "wrong-password"},
	}
	for _, tc := range cases {
		if _, err := f.svc.Login(ctx, tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("login(%q): expected ErrInvalidCredentials, got %v", tc.email, err)
		}
	}

	user, err := f.svc.Login(ctx, "  MEMBER@example.com ", "password123")
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if user.IsAdmin || user.IsAPIEnabled {
		t.Fatalf("expected ordinary member to stay unprivileged")
	}
}

func TestLogin_OwnerBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.createUser(t, "owner@example.com", "password123", nil)

	user, err := f.svc.Login(ctx, "owner@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !user.IsAdmin || !user.IsAPIEnabled {
		t.Fatalf("expected owner flags on returned user")
	}
	stored := f.reload(t, owner.ID)
	if !stored.IsAdmin || !stored.IsAPIEnabled {
		t.Fatalf("expected owner flags persisted")
	}

	before := stored.UpdatedAt
	f.clock.Advance(time.Hour)
	if _, errAgain := f.svc.Login(ctx, "owner@example.com", "password123"); errAgain != nil {
		t.Fatalf("second login: %v", errAgain)
	}
	if after := f.reload(t, owner.ID).UpdatedAt; !after.Equal(before) {
		t.Fatalf("expected bootstrap to be a no-op once flags are set")
	}

	if _, errWrong := f.svc.Login(ctx, "owner@example.com", "bad-password"); !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("expected owner with wrong password to be rejected, got %v", errWrong)
	}
}

func TestLogin_OwnerWithWrongPasswordNotElevated(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com", "password123", nil)
	_, _ = f.svc.Login(context.Background(), "owner@example.com", "nope-nope")
	if stored := f.reload(t, owner.ID); stored.IsAdmin {
		t.Fatalf("expected failed login not to elevate owner")
	}
}

func TestIssueSession(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "member@example.com", "password123", nil)
	token, err := f.svc.IssueSession("secret", user)
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	claims, err := security.ParseSessionTokenAt("secret", token, f.clock.Now())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected userId claim %q, got %q", user.ID, claims.UserID)
	}
	if !claims.ExpiresAt.Time.Equal(f.clock.Now().Add(security.SessionTTL).Truncate(time.Second)) {
		t.Fatalf("expected expiry from the service clock, got %s", claims.ExpiresAt.Time)
	}
	if _, errExpired := security.ParseSessionTokenAt("secret", token, f.clock.Now().Add(security.SessionTTL+time.Second)); errExpired == nil {
		t.Fatalf("expected token rejected after its lifetime")
	}
}

// seedCascade creates an admin, bob with three certificates, two batches
// (one with two invalid emails) and one template, and carol with one
// certificate and one batch.
func seedCascade(t *testing.T, f *fixture) (admin, bob, carol *models.User) {
	t.Helper()
	admin = f.createUser(t, "alice@example.com", "password123", func(u *models.User) { u.IsAdmin = true })
	bob = f.createUser(t, "bob@example.com", "password123", nil)
	carol = f.createUser(t, "carol@example.com", "password123", nil)

	tpl := models.Template{CreatorID: bob.ID, Name: "bob tpl", ImageURL: "https://img/bob", Width: 800, Height: 600}
	mustCreate(t, f.conn, &tpl)

	bobBatch1 := models.Batch{CreatorID: bob.ID, Name: "b1"}
	bobBatch2 := models.Batch{CreatorID: bob.ID, Name: "b2"}
	carolBatch := models.Batch{CreatorID: carol.ID, Name: "c1"}
	mustCreate(t, f.conn, &bobBatch1)
	mustCreate(t, f.conn, &bobBatch2)
	mustCreate(t, f.conn, &carolBatch)

	for i := 0; i < 3; i++ {
		batchID := bobBatch1.ID
		mustCreate(t, f.conn, &models.Certificate{CreatorID: bob.ID, BatchID: &batchID, TemplateID: &tpl.ID, RecipientName: "r", RecipientEmail: "r@example.com"})
	}
	carolBatchID := carolBatch.ID
	mustCreate(t, f.conn, &models.Certificate{CreatorID: carol.ID, BatchID: &carolBatchID, RecipientName: "r", RecipientEmail: "r@example.com"})

	mustCreate(t, f.conn, &models.InvalidEmail{BatchID: bobBatch2.ID, Email: "bad1", Reason: "syntax"})
	mustCreate(t, f.conn, &models.InvalidEmail{BatchID: bobBatch2.ID, Email: "bad2", Reason: "syntax"})
	mustCreate(t, f.conn, &models.FailedCertificate{BatchID: bobBatch1.ID, RecipientEmail: "x@example.com", Error: "smtp"})

	mustCreate(t, f.conn, &models.APIKey{UserID: bob.ID, Name: "k", Key: "sk-bob"})
	mustCreate(t, f.conn, &models.EmailConfig{UserID: bob.ID, SMTPHost: "smtp.bob"})
	mustCreate(t, f.conn, &models.TokenTransaction{UserID: bob.ID, Amount: 10, Type: models.TokenTransactionAdd, Reason: models.TokenReasonAdminAdd, Email: bob.Email})
	return admin, bob, carol
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func TestDeleteUser_PurgesEveryDependent(t *testing.T) {
	f := newFixture(t)
	admin, bob, carol := seedCascade(t, f)

	if err := f.svc.DeleteUser(context.Background(), admin.ID, bob.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if n := count(t, f.conn, &models.User{}, "id = ?", bob.ID); n != 0 {
		t.Fatalf("expected bob removed, got %d", n)
	}
	if n := count(t, f.conn, &models.Certificate{}, ""); n != 1 {
		t.Fatalf("expected only carol's certificate to remain, got %d", n)
	}
	if n := count(t, f.conn, &models.Batch{}, ""); n != 1 {
		t.Fatalf("expected only carol's batch to remain, got %d", n)
	}
	for _, model := range []any{&models.InvalidEmail{}, &models.FailedCertificate{}, &models.Template{}, &models.APIKey{}, &models.EmailConfig{}, &models.TokenTransaction{}} {
		if n := count(t, f.conn, model, ""); n != 0 {
			t.Fatalf("expected no %T rows, got %d", model, n)
		}
	}
	if n := count(t, f.conn, &models.User{}, "id IN ?", []string{admin.ID, carol.ID}); n != 2 {
		t.Fatalf("expected admin and carol untouched, got %d", n)
	}
}

func TestDeleteUser_Guards(t *testing.T) {
	f := newFixture(t)
	admin, _, _ := seedCascade(t, f)
	ctx := context.Background()

	if err := f.svc.DeleteUser(ctx, admin.ID, ""); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}
	if err := f.svc.DeleteUser(ctx, admin.ID, admin.ID); !errors.Is(err, ErrSelfDeletion) {
		t.Fatalf("expected ErrSelfDeletion, got %v", err)
	}
	if n := count(t, f.conn, &models.User{}, "id = ?", admin.ID); n != 1 {
		t.Fatalf("expected admin to survive self-deletion attempt")
	}
	if err := f.svc.DeleteUser(ctx, admin.ID, "no-such-user"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteUser_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	admin, bob, _ := seedCascade(t, f)

	errInjected := errors.New("injected template delete failure")
	if errRegister := f.conn.Callback().Delete().Before("gorm:delete").Register("test:fail_templates", func(tx *gorm.DB) {
		if tx.Statement.Table == "templates" {
			_ = tx.AddError(errInjected)
		}
	}); errRegister != nil {
		t.Fatalf("register callback: %v", errRegister)
	}

	before := map[string]int64{}
	tables := map[string]any{
		"users": &models.User{}, "certificates": &models.Certificate{}, "batches": &models.Batch{},
		"invalid_emails": &models.InvalidEmail{}, "failed_certificates": &models.FailedCertificate{},
		"templates": &models.Template{}, "token_transactions": &models.TokenTransaction{},
	}
	for name, model := range tables {
		before[name] = count(t, f.conn, model, "")
	}

	err := f.svc.DeleteUser(context.Background(), admin.ID, bob.ID)
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	for name, model := range tables {
		if after := count(t, f.conn, model, ""); after != before[name] {
			t.Fatalf("expected %s unchanged after rollback: before=%d after=%d", name, before[name], after)
		}
	}
}

func TestDeleteUser_KeepsGrantsIssuedByDeletedAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com", "password123", func(u *models.User) { u.IsAdmin = true })
	admin := f.createUser(t, "admin2@example.com", "password123", func(u *models.User) { u.IsAdmin = true })
	member := f.createUser(t, "member@example.com", "password123", nil)

	if _, err := f.svc.GrantTokens(context.Background(), admin.ID, member.Email, 5); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := f.svc.DeleteUser(context.Background(), owner.ID, admin.ID); err != nil {
		t.Fatalf("delete admin: %v", err)
	}
	var entry models.TokenTransaction
	if errFind := f.conn.Where("user_id = ?", member.ID).Take(&entry).Error; errFind != nil {
		t.Fatalf("expected member's ledger row to survive: %v", errFind)
	}
	if entry.IssuedByID != nil {
		t.Fatalf("expected issuer cleared, got %v", *entry.IssuedByID)
	}
}

func TestGrantTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, "admin@example.com", "password123", func(u *models.User) { u.IsAdmin = true })
	member := f.createUser(t, "member@example.com", "password123", func(u *models.User) { u.Tokens = 100 })

	balance, err := f.svc.GrantTokens(ctx, admin.ID, "Member@Example.com", 50)
	if err != nil {
		t.Fatalf("GrantTokens: %v", err)
	}
	if balance != 150 {
		t.Fatalf("expected balance 150, got %d", balance)
	}

	var entries []models.TokenTransaction
	if errFind := f.conn.Find(&entries).Error; errFind != nil {
		t.Fatalf("list ledger: %v", errFind)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(entries))
	}
	entry := entries[0]
	if entry.UserID != member.ID || entry.Amount != 50 || entry.Type != models.TokenTransactionAdd ||
		entry.Reason != models.TokenReasonAdminAdd || entry.Email != member.Email {
		t.Fatalf("unexpected ledger row: %#v", entry)
	}
	if entry.IssuedByID == nil || *entry.IssuedByID != admin.ID {
		t.Fatalf("expected issuer %q, got %v", admin.ID, entry.IssuedByID)
	}

	got, err := f.svc.Balance(ctx, member.ID)
	if err != nil || got != 150 {
		t.Fatalf("expected stored balance 150, got %d err=%v", got, err)
	}
}

func TestGrantTokens_RejectsAndLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createUser(t, "member@example.com", "password123", nil)

	if _, err := f.svc.GrantTokens(ctx, "admin", "member@example.com", 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for 0, got %v", err)
	}
	if _, err := f.svc.GrantTokens(ctx, "admin", "member@example.com", -5); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := f.svc.GrantTokens(ctx, "admin", "", 5); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
	if _, err := f.svc.GrantTokens(ctx, "admin", "ghost@example.com", 5); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if n := count(t, f.conn, &models.TokenTransaction{}, ""); n != 0 {
		t.Fatalf("expected no ledger rows after rejected grants, got %d", n)
	}
}

func TestGrantTokens_ConcurrentGrantsSum(t *testing.T) {
	f := newFixture(t)
	member := f.createUser(t, "member@example.com", "password123", nil)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.GrantTokens(context.Background(), "", member.Email, 5); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent grant failed: %v", err)
	}

	if got := f.reload(t, member.ID).Tokens; got != workers*5 {
		t.Fatalf("expected balance %d, got %d", workers*5, got)
	}
	if n := count(t, f.conn, &models.TokenTransaction{}, "user_id = ?", member.ID); n != workers {
		t.Fatalf("expected %d ledger rows, got %d", workers, n)
	}
}

func TestListTransactions_Paging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createUser(t, "a@example.com", "password123", nil)
	b := f.createUser(t, "b@example.com", "password123", nil)
	for i := 0; i < 12; i++ {
		if _, err := f.svc.GrantTokens(ctx, "", a.Email, 1); err != nil {
			t.Fatalf("grant: %v", err)
		}
	}
	if _, err := f.svc.GrantTokens(ctx, "", b.Email, 1); err != nil {
		t.Fatalf("grant: %v", err)
	}

	rows, page, err := f.svc.ListTransactions(ctx, "", 2)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if page.Total != 13 || page.TotalPages != 2 || page.Number != 2 || len(rows) != 3 {
		t.Fatalf("unexpected page: %#v rows=%d", page, len(rows))
	}

	own, ownPage, err := f.svc.ListTransactions(ctx, b.ID, 0)
	if err != nil {
		t.Fatalf("ListTransactions own: %v", err)
	}
	if ownPage.Total != 1 || ownPage.Number != 1 || len(own) != 1 || own[0].UserID != b.ID {
		t.Fatalf("unexpected own page: %#v", ownPage)
	}
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := "verify-token"
	user := f.createUser(t, "member@example.com", "password123", func(u *models.User) { u.VerificationToken = &token })

	if err := f.svc.VerifyEmail(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, "unknown"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := f.svc.VerifyEmail(ctx, token); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	stored := f.reload(t, user.ID)
	if !stored.EmailVerified() || stored.VerificationToken != nil {
		t.Fatalf("expected verified with token cleared: %#v", stored)
	}
	if err := f.svc.VerifyEmail(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
}

func TestResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	verifiedAt := time.Now()
	f.createUser(t, "done@example.com", "password123", func(u *models.User) { u.EmailVerifiedAt = &verifiedAt })
	pending := f.createUser(t, "pending@example.com", "password123", nil)

	if err := f.svc.ResendVerification(ctx, ""); !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "ghost@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "done@example.com"); !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "pending@example.com"); err != nil {
		t.Fatalf("ResendVerification: %v", err)
	}

	stored := f.reload(t, pending.ID)
	if stored.VerificationToken == nil || len(*stored.VerificationToken) != 64 {
		t.Fatalf("expected new 64-char token, got %v", stored.VerificationToken)
	}
	msgs := f.mail.Messages()
	if len(msgs) != 1 || msgs[0].To != "pending@example.com" {
		t.Fatalf("expected one verification email, got %#v", msgs)
	}
	if !strings.Contains(msgs[0].Text, "https://app.example/verify-email?token="+*stored.VerificationToken) {
		t.Fatalf("expected link with token, got %q", msgs[0].Text)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "member@example.com", "old-password", nil)

	if err := f.svc.RequestPasswordReset(ctx, "ghost@example.com"); err != nil {
		t.Fatalf("expected unknown email to succeed silently, got %v", err)
	}
	if len(f.mail.Messages()) != 0 {
		t.Fatalf("expected no email for unknown address")
	}

	if err := f.svc.RequestPasswordReset(ctx, "member@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	stored := f.reload(t, user.ID)
	if stored.ResetToken == nil || stored.ResetTokenExpiry == nil {
		t.Fatalf("expected reset token stored")
	}
	if want := f.clock.Now().Add(ResetTokenTTL); !stored.ResetTokenExpiry.Equal(want) {
		t.Fatalf("expected expiry %s, got %s", want, stored.ResetTokenExpiry)
	}
	token := *stored.ResetToken

	if err := f.svc.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token, strings.Repeat("p", 80)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, "unknown", "new-password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token, "new-password"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := f.svc.Login(ctx, "member@example.com", "new-password"); err != nil {
		t.Fatalf("expected login with new password, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, token, "another-password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token reuse to fail, got %v", err)
	}
	cleared := f.reload(t, user.ID)
	if cleared.ResetToken != nil || cleared.ResetTokenExpiry != nil {
		t.Fatalf("expected reset token cleared")
	}
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "member@example.com", "old-password", nil)

	if err := f.svc.RequestPasswordReset(ctx, user.Email); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	token := *f.reload(t, user.ID).ResetToken

	f.clock.Advance(ResetTokenTTL + time.Second)
	if err := f.svc.ResetPassword(ctx, token, "new-password"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
	if _, err := f.svc.Login(ctx, user.Email, "old-password"); err != nil {
		t.Fatalf("expected old password to still work, got %v", err)
	}
}

func TestPasswordReset_MailFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.mail.Err = errors.New("smtp down")
	f.createUser(t, "member@example.com", "old-password", nil)
	if err := f.svc.RequestPasswordReset(context.Background(), "member@example.com"); err != nil {
		t.Fatalf("expected mail failure to be logged only, got %v", err)
	}
}

func TestSignup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "password123"}); !errors.Is(err, ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}
	if _, err := f.svc.Signup(ctx, SignupInput{Name: "A", Email: "not-an-email", Password: "password123"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: "short"}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := f.svc.Signup(ctx, SignupInput{Name: "A", Email: "a@example.com", Password: strings.Repeat("p", 80)}); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	user, err := f.svc.Signup(ctx, SignupInput{Name: "Ann", Email: " Ann@Example.com ", Password: "password123", Organization: "Org"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "ann@example.com" || user.EmailVerified() || user.VerificationToken == nil {
		t.Fatalf("unexpected user: %#v", user)
	}
	if msgs := f.mail.Messages(); len(msgs) != 1 || msgs[0].Subject != "Confirm your email" {
		t.Fatalf("expected verification email, got %#v", msgs)
	}

	if _, errDup := f.svc.Signup(ctx, SignupInput{Name: "Ann", Email: "ann@example.com", Password: "password123"}); !errors.Is(errDup, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", errDup)
	}
}

func TestCreateUser_GeneratedPasswordLogsIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, password, err := f.svc.CreateUser(ctx, CreateUserInput{Name: "Dan", Email: "dan@example.com", Organization: "Org"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if len(password) != generatedPasswordLength {
		t.Fatalf("expected %d-char password, got %q", generatedPasswordLength, password)
	}
	if !user.EmailVerified() {
		t.Fatalf("expected admin-created user to be verified")
	}
	if _, errLogin := f.svc.Login(ctx, "dan@example.com", password); errLogin != nil {
		t.Fatalf("expected login with generated password, got %v", errLogin)
	}
	if _, _, errDup := f.svc.CreateUser(ctx, CreateUserInput{Name: "Dan", Email: "dan@example.com"}); !errors.Is(errDup, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", errDup)
	}
}

func TestListUsers_Search(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "alpha@example.com", "", nil)
	f.createUser(t, "beta@example.com", "", nil)

	all, err := f.svc.ListUsers(context.Background(), "")
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 users, got %d err=%v", len(all), err)
	}
	found, err := f.svc.ListUsers(context.Background(), "ALP")
	if err != nil || len(found) != 1 || found[0].Email != "alpha@example.com" {
		t.Fatalf("expected alpha only, got %#v err=%v", found, err)
	}

	f.createUser(t, "a_b@example.com", "", nil)
	f.createUser(t, "axb@example.com", "", nil)
	found, err = f.svc.ListUsers(context.Background(), "A_B")
	if err != nil || len(found) != 1 || found[0].Email != "a_b@example.com" {
		t.Fatalf("expected underscore to match literally, got %#v err=%v", found, err)
	}
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		password string
		want     error
	}{
		{"", ErrMissingPassword},
		{"1234567", ErrWeakPassword},
		{"12345678", nil},
		{strings.Repeat("p", MaxPasswordLength), nil},
		{strings.Repeat("p", MaxPasswordLength+1), ErrPasswordTooLong},
	}
	for _, tc := range cases {
		if got := ValidatePassword(tc.password); !errors.Is(got, tc.want) {
			t.Fatalf("ValidatePassword(len=%d): expected %v, got %v", len(tc.password), tc.want, got)
		}
	}
}
