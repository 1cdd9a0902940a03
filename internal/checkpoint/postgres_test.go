package checkpoint

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/oseg/krawler/internal/hosting"
)

func TestPostgresStore_SaveUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithPool(mock, nil)

	mock.ExpectExec("INSERT INTO fetcher_state").
		WithArgs("github.com", []byte(`{"page":2,"num_fetched":13}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Save(context.Background(), hosting.GitHub, &State{Page: 2, NumFetched: 13})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadDecodesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithPool(mock, nil)

	mock.ExpectQuery("SELECT state FROM fetcher_state").
		WithArgs("certification.oshwa.org").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).
			AddRow([]byte(`{"offset":150,"num_fetched":150,"total":3000}`)))

	got, err := store.Load(context.Background(), hosting.OSHWA)
	require.NoError(t, err)
	require.Equal(t, &State{Offset: 150, NumFetched: 150, Total: 3000}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadMissingRowIsNil(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithPool(mock, nil)

	mock.ExpectQuery("SELECT state FROM fetcher_state").
		WithArgs("github.com").
		WillReturnRows(pgxmock.NewRows([]string{"state"}))

	got, err := store.Load(context.Background(), hosting.GitHub)
	require.NoError(t, err)
	require.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteReportsExistence(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newPostgresStoreWithPool(mock, nil)

	mock.ExpectExec("DELETE FROM fetcher_state").
		WithArgs("github.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM fetcher_state").
		WithArgs("github.com").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	existed, err := store.Delete(context.Background(), hosting.GitHub)
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = store.Delete(context.Background(), hosting.GitHub)
	require.NoError(t, err)
	require.False(t, existed)
	require.NoError(t, mock.ExpectationsWereMet())
}
