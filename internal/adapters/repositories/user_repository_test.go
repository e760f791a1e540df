package repositories

import (
	"context"
	"errors"
	"nearme-service/internal/domain"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newUserMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresUserRepository(db), mock
}

func TestCreateUser(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("u1", "", true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateUser(context.Background(), domain.User{ID: "u1", Anonymous: true, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	checkExpectations(t, mock)
}

func TestGetUser(t *testing.T) {
	repo, mock := newUserMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "is_anonymous", "created_at"}).
			AddRow("u1", "Sam", true, created))

	u, err := repo.GetUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.DisplayName != "Sam" || !u.Anonymous || !u.CreatedAt.Equal(created) {
		t.Fatalf("user = %+v", u)
	}
	checkExpectations(t, mock)
}

func TestGetUserNotFound(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "display_name", "is_anonymous", "created_at"}))

	if _, err := repo.GetUser(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	checkExpectations(t, mock)
}

func TestUpdateDisplayNameNotFound(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WithArgs("ghost", "Sam").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.UpdateDisplayName(context.Background(), "ghost", "Sam"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	checkExpectations(t, mock)
}
