package privileges

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postcore/categories"
	"github.com/cppla/postcore/config"
	"github.com/cppla/postcore/models"
	"github.com/cppla/postcore/store"
	"github.com/cppla/postcore/store/storetest"
	"github.com/cppla/postcore/users"
)

func TestCanViewDeleted(t *testing.T) {
	ctx := context.Background()
	gdb := storetest.NewDB(t, &models.User{}, &models.CategoryModerator{})
	s, _ := storetest.New(t)

	for _, u := range []models.User{{ID: 1, Username: "root"}, {ID: 2, Username: "mod"}, {ID: 3, Username: "member"}} {
		require.NoError(t, gdb.Create(&u).Error)
	}
	cats := categories.NewService(gdb, s)
	require.NoError(t, cats.AddModerator(ctx, 5, 2))
	require.NoError(t, s.SetObject(ctx, store.PostKey(10), map[string]string{"pid": "10", "cid": "5"}))
	require.NoError(t, s.SetObject(ctx, store.PostKey(11), map[string]string{"pid": "11", "cid": "6"}))

	cfg := config.AppConfig{AdminUsernames: []string{"Root"}}
	svc := NewService(s, users.NewService(gdb, s, nil), cats, cfg.IsAdminUsername)

	cases := []struct {
		name string
		pid  int64
		uid  int64
		want bool
	}{
		{"admin anywhere", 11, 1, true},
		{"moderator in own category", 10, 2, true},
		{"moderator elsewhere", 11, 2, false},
		{"member", 10, 3, false},
		{"unknown user", 10, 99, false},
		{"guest", 10, 0, false},
		{"missing post", 404, 2, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanViewDeleted(ctx, tc.pid, tc.uid)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
