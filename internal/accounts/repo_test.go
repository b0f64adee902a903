package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryCreateAndFind(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateAccountDTO{
		Email:        "ada@example.com",
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, enums.AccountRoleCustomer, created.Role)

	byEmail, err := repo.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	ok, err := repo.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, created.ID, at))
	reloaded, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	assert.True(t, reloaded.LastLoginAt.Equal(at))
}

func TestRepositoryDuplicateEmail(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	dto := CreateAccountDTO{Email: "dup@example.com", PasswordHash: "h", FirstName: "A", LastName: "B"}

	_, err := repo.Create(ctx, dto)
	require.NoError(t, err)
	_, err = repo.Create(ctx, dto)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestFromModelOmitsHash(t *testing.T) {
	t.Parallel()

	assert.Nil(t, FromModel(nil))
	dto := CreateAccountDTO{Email: "x@example.com", PasswordHash: "secret", Role: enums.AccountRoleAdmin}
	view := FromModel(dto.ToModel())
	assert.Equal(t, "x@example.com", view.Email)
	assert.Equal(t, enums.AccountRoleAdmin, view.Role)
}
