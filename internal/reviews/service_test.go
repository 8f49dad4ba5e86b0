package reviews

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/testdb"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB, models.Product) {
	t.Helper()
	conn := testdb.Open(t)
	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)
	category := testdb.Category(t, conn, "Widgets")
	return svc, conn, testdb.Product(t, conn, category.ID, "WIDGET-1", "10.00", 5)
}

func TestCreateReviewStartsUnapproved(t *testing.T) {
	svc, conn, product := newTestService(t)
	customer := testdb.Customer(t, conn)
	title := "  Solid  "

	review, err := svc.CreateReview(context.Background(), CreateInput{ProductID: product.ID, CustomerID: customer.ID, Rating: 4, Title: &title})
	require.NoError(t, err)
	assert.False(t, review.IsApproved)
	require.NotNil(t, review.Title)
	assert.Equal(t, "Solid", *review.Title)
}

func TestCreateReviewDuplicateIsConstraintViolation(t *testing.T) {
	svc, conn, product := newTestService(t)
	ctx := context.Background()
	customer := testdb.Customer(t, conn)
	input := CreateInput{ProductID: product.ID, CustomerID: customer.ID, Rating: 5}

	_, err := svc.CreateReview(ctx, input)
	require.NoError(t, err)

	input.Rating = 1
	_, err = svc.CreateReview(ctx, input)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConstraint), "got %v", err)
	assert.EqualValues(t, 1, testdb.Count(t, conn, &models.Review{}))
}

func TestCreateReviewValidation(t *testing.T) {
	svc, conn, product := newTestService(t)
	ctx := context.Background()
	customer := testdb.Customer(t, conn)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.CreateReview(ctx, CreateInput{ProductID: product.ID, CustomerID: customer.ID, Rating: rating})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "rating %d: %v", rating, err)
	}

	_, err := svc.CreateReview(ctx, CreateInput{ProductID: uuid.New(), CustomerID: customer.ID, Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.CreateReview(ctx, CreateInput{ProductID: product.ID, CustomerID: uuid.New(), Rating: 3})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestListApprovedOnlyReturnsApprovedReviews(t *testing.T) {
	svc, conn, product := newTestService(t)
	ctx := context.Background()

	var approved []uuid.UUID
	for i := 0; i < 3; i++ {
		review, err := svc.CreateReview(ctx, CreateInput{ProductID: product.ID, CustomerID: testdb.Customer(t, conn).ID, Rating: 5})
		require.NoError(t, err)
		if i < 2 {
			_, err := svc.Approve(ctx, review.ID)
			require.NoError(t, err)
			approved = append(approved, review.ID)
		}
	}

	first, err := svc.ListApproved(ctx, product.ID, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first.Reviews, 1)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.ListApproved(ctx, product.ID, pagination.Params{Limit: 1, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Reviews, 1)
	assert.Empty(t, second.NextCursor)

	assert.ElementsMatch(t, approved, []uuid.UUID{first.Reviews[0].ID, second.Reviews[0].ID})

	_, err = svc.Approve(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}
