package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"identity-core/internal/data/entity"
	"identity-core/internal/dto/request"
	"identity-core/pkg/apperror"
	"identity-core/pkg/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	h := newHarness(t)
	user := h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)

	resp, err := h.svc.User.GetUser(context.Background(), user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)

	_, err = h.svc.User.GetUser(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = h.svc.User.GetUser(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestGetAllUsersPaginates(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 5; i++ {
		h.seedUser(fmt.Sprintf("u%d@x.com", i), fmt.Sprintf("user%d", i), testPassword, entity.RoleStandard)
		time.Sleep(time.Millisecond)
	}

	page, err := h.svc.User.GetAllUsers(context.Background(), &request.PaginatedRequest{Page: 2, PerPage: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "user2", page.Data[0].Username, "newest first")

	last, err := h.svc.User.GetAllUsers(context.Background(), &request.PaginatedRequest{Page: 3, PerPage: 2})
	require.NoError(t, err)
	assert.Len(t, last.Data, 1)
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.seedUser("root@x.com", "root", testPassword, entity.RoleAdmin)
	user := h.seedUser("a@x.com", "alice", testPassword, entity.RoleStandard)

	require.NoError(t, h.svc.User.DeleteUser(ctx, utils.PrincipalFromUser(admin), user.ID.String(), utils.RequestMeta{}))
	assert.Nil(t, h.reload(user.ID))

	err := h.svc.User.DeleteUser(ctx, utils.PrincipalFromUser(admin), user.ID.String(), utils.RequestMeta{})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	h.wait()
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, "admin_user_delete", h.notifier.events[0].Action)
}
