package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/database/dbtest"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
	"github.com/jerin288/jdt-tool-web/internal/services/progress"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mod := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func TestRun_RemovesOldFilesAndTasks(t *testing.T) {
	dir := t.TempDir()
	old := writeFile(t, dir, "converted_aaaaaaaa.xlsx", 2*time.Hour)
	fresh := writeFile(t, dir, "converted_bbbbbbbb.csv", time.Minute)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	store := progress.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Start(ctx, "t1", "u1"))

	j := New(dir, time.Hour, 0, store, nil, nil)
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	time.Sleep(time.Millisecond)

	rep, err := j.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.DeletedFiles)
	assert.Equal(t, 1, rep.DeletedTasks)
	assert.NoFileExists(t, old)
	assert.NoFileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "sub"))
}

func TestRun_KeepsFreshFiles(t *testing.T) {
	dir := t.TempDir()
	fresh := writeFile(t, dir, "upload.pdf", time.Minute)

	j := New(dir, time.Hour, time.Hour, progress.NewMemoryStore(), nil, nil)
	rep, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, rep)
	assert.FileExists(t, fresh)
}

func TestRun_MissingWorkDir(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "missing"), time.Hour, time.Hour, progress.NewMemoryStore(), nil, nil)
	rep, err := j.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.DeletedFiles)
}

func TestRun_FailsAndRefundsAbandonedConversions(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	l := ledger.New(db, ledger.Policy{})

	user := &models.User{Email: "j@example.com", PasswordHash: "x", ReferralCode: "JANITOR1", TotalCredits: 5}
	require.NoError(t, db.InsertUser(ctx, user))

	conv := &models.Conversion{ID: "c1", Filename: "a.pdf", OutputFormat: "xlsx"}
	_, err := l.Charge(ctx, user.ID, conv)
	require.NoError(t, err)

	j := New(t.TempDir(), time.Hour, time.Hour, progress.NewMemoryStore(), db, l)
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	rep, err := j.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Abandoned)

	got, err := db.GetConversion(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.True(t, got.Refunded)

	bal, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, bal.AvailableCredits())

	// A second sweep finds nothing left to fail.
	rep, err = j.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Abandoned)
}

func TestRun_LateCompletionCannotReviveRefundedConversion(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	l := ledger.New(db, ledger.Policy{})

	user := &models.User{Email: "late@example.com", PasswordHash: "x", ReferralCode: "JANITOR2", TotalCredits: 5}
	require.NoError(t, db.InsertUser(ctx, user))

	conv := &models.Conversion{ID: "c2", Filename: "slow.pdf", OutputFormat: "xlsx"}
	_, err := l.Charge(ctx, user.ID, conv)
	require.NoError(t, err)
	require.NoError(t, db.MarkProcessing(ctx, conv.ID))

	j := New(t.TempDir(), time.Hour, time.Hour, progress.NewMemoryStore(), db, l)
	j.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	rep, err := j.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, rep.Abandoned)

	// The slow worker finishes after the sweep already refunded the credit.
	err = db.CompleteConversion(ctx, conv.ID, "converted_late0001.xlsx", 2, 0)
	assert.ErrorIs(t, err, database.ErrConversionClosed)

	got, err := db.GetConversion(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.True(t, got.Refunded)
	assert.Empty(t, got.OutputFile)

	_, err = db.GetConversionByOutputFile(ctx, "converted_late0001.xlsx")
	assert.ErrorIs(t, err, database.ErrConversionNotFound)

	bal, err := l.Balance(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, bal.AvailableCredits())
}

func TestStart_StopsOnCancel(t *testing.T) {
	j := New(t.TempDir(), time.Hour, time.Hour, progress.NewMemoryStore(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := j.Start(ctx, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
