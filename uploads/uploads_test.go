package uploads

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/store/storetest"
)

func setupUploadService(t *testing.T) (*Service, *gorm.DB, store.Store) {
	t.Helper()
	gdb := storetest.NewDB(t, &models.UploadedFile{})
	s, _ := storetest.New(t)
	return NewService(gdb, s, nil), gdb, s
}

func TestExtractURLs(t *testing.T) {
	content := `<img src="/static/uploads/2024/01/02/a.png"> see /static/uploads/2024/01/02/b_c-d.pdf and ` +
		`/static/uploads/2024/01/02/a.png again, not /static/other/x.png`
	assert.Equal(t, []string{
		"/static/uploads/2024/01/02/a.png",
		"/static/uploads/2024/01/02/b_c-d.pdf",
	}, ExtractURLs(content))
	assert.Empty(t, ExtractURLs("no files"))
}

func TestSync_ReconcilesIndexAndAttachesFiles(t *testing.T) {
	svc, gdb, s := setupUploadService(t)
	ctx := context.Background()

	exp := time.Now().Add(time.Hour)
	require.NoError(t, gdb.Create(&models.UploadedFile{FilePath: "/tmp/a", URL: "/static/uploads/a.png", ExpireAt: &exp}).Error)
	require.NoError(t, s.SortedSetAdd(ctx, store.PostUploadsKey(1), 1, "/static/uploads/old.png"))
	require.NoError(t, s.SetObject(ctx, store.PostKey(1), map[string]string{
		"pid": "1", "content": "look /static/uploads/a.png and /static/uploads/b.png",
	}))

	require.NoError(t, svc.Sync(ctx, 1))

	urls, err := svc.URLs(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/static/uploads/a.png", "/static/uploads/b.png"}, urls)

	var f models.UploadedFile
	require.NoError(t, gdb.Where("url = ?", "/static/uploads/a.png").First(&f).Error)
	assert.Equal(t, int64(1), f.PostID)
	assert.Nil(t, f.ExpireAt)

	// syncing again changes nothing
	require.NoError(t, svc.Sync(ctx, 1))
	again, err := svc.URLs(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, urls, again)
}

func TestSync_PostWithoutUploads(t *testing.T) {
	svc, _, s := setupUploadService(t)
	ctx := context.Background()
	require.NoError(t, s.SetObject(ctx, store.PostKey(2), map[string]string{"pid": "2", "content": "plain"}))

	require.NoError(t, svc.Sync(ctx, 2))
	urls, err := svc.URLs(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestCleaner_KeepsAttachedFiles(t *testing.T) {
	_, gdb, _ := setupUploadService(t)
	ctx := context.Background()
	dir := t.TempDir()

	expired := filepath.Join(dir, "expired.png")
	attached := filepath.Join(dir, "attached.png")
	require.NoError(t, os.WriteFile(expired, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(attached, []byte("x"), 0o644))

	_, err := Track(ctx, gdb, expired, "/static/uploads/expired.png", -time.Minute)
	require.NoError(t, err)
	f, err := Track(ctx, gdb, attached, "/static/uploads/attached.png", -time.Minute)
	require.NoError(t, err)
	require.NoError(t, gdb.Model(f).UpdateColumn("post_id", 9).Error)
	_, err = Track(ctx, gdb, filepath.Join(dir, "fresh.png"), "/static/uploads/fresh.png", time.Hour)
	require.NoError(t, err)

	n, err := NewCleaner(gdb, nil, 0).CleanOnce(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(expired)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(attached)
	assert.NoError(t, err)

	var left int64
	require.NoError(t, gdb.Model(&models.UploadedFile{}).Count(&left).Error)
	assert.Equal(t, int64(2), left)
}
