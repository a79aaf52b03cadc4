package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/bookshop-service/internal/models"
	"github.com/cypherlabdev/bookshop-service/internal/observability"
)

const bookID = "0d5c1c8e-4a0e-4b6b-9a55-7d1f2c3b4a5e"

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, ok, err := store.Get(ctx, models.TableBooks, bookID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, models.TableBooks, bookID, models.Fields{"title": "Dune", "book_ids": []any{"a"}}))

	record, ok, err := store.Get(ctx, models.TableBooks, bookID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Dune", record["title"])

	// tables are independent namespaces
	_, ok, _ = store.Get(ctx, models.TableCustomers, bookID)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, models.TableBooks, bookID))
	require.NoError(t, store.Delete(ctx, models.TableBooks, bookID), "deleting twice is fine")
	assert.Equal(t, 0, store.Len(models.TableBooks))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	original := models.Fields{"book_ids": []any{"a", "b"}}
	require.NoError(t, store.Put(ctx, models.TableOrders, "o1", original))

	original["book_ids"].([]any)[0] = "mutated"
	got, _, err := store.Get(ctx, models.TableOrders, "o1")
	require.NoError(t, err)
	got["extra"] = true

	again, _, err := store.Get(ctx, models.TableOrders, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.Fields{"book_ids": []any{"a", "b"}}, again)
}

func TestMemoryStore_RejectsEmptyID(t *testing.T) {
	assert.ErrorIs(t, NewMemoryStore().Put(context.Background(), models.TableBooks, "", models.Fields{}), ErrEmptyID)
}

func TestMemoryStore_ConcurrentWritesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, models.TableBooks, bookID, models.Fields{"title": "start"}))

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// read-merge-write, as the update path does
			stored, _, err := store.Get(ctx, models.TableBooks, bookID)
			if err != nil {
				return
			}
			_ = store.Put(ctx, models.TableBooks, bookID, stored.Merge(models.Fields{"title": fmt.Sprintf("writer-%d", n)}))
		}(i)
	}
	wg.Wait()

	// exactly one writer's value survives intact; which one is not defined
	final, ok, err := store.Get(ctx, models.TableBooks, bookID)
	require.NoError(t, err)
	require.True(t, ok)
	winners := make([]string, writers)
	for i := range winners {
		winners[i] = fmt.Sprintf("writer-%d", i)
	}
	assert.Contains(t, winners, final["title"])
	assert.Len(t, final, 1)
}

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock, zerolog.Nop())

	mock.ExpectQuery("SELECT data FROM records").
		WithArgs(models.TableBooks, bookID).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"title":"Dune","book_id":"` + bookID + `"}`)))

	record, ok, err := store.Get(context.Background(), models.TableBooks, bookID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Dune", record["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock, zerolog.Nop())

	mock.ExpectQuery("SELECT data FROM records").
		WithArgs(models.TableBooks, bookID).
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := store.Get(context.Background(), models.TableBooks, bookID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock, zerolog.Nop())

	mock.ExpectExec("INSERT INTO records").
		WithArgs(models.TableCustomers, "c1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM records").
		WithArgs(models.TableCustomers, "c1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Put(context.Background(), models.TableCustomers, "c1", models.Fields{"username": "ada"}))
	require.NoError(t, store.Delete(context.Background(), models.TableCustomers, "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutFailureIsWrapped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store := NewPostgresStore(mock, zerolog.Nop())

	dbErr := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO records").WillReturnError(dbErr)

	err = store.Put(context.Background(), models.TableOrders, "o1", models.Fields{})
	assert.ErrorIs(t, err, dbErr)
}

func TestRedisKey(t *testing.T) {
	assert.Equal(t, "bookshop:books:"+bookID, redisKey(models.TableBooks, bookID))
}

func TestConnectRedis(t *testing.T) {
	byURL, err := ConnectRedis("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	defer byURL.Close()
	assert.Equal(t, "cache:6380", byURL.Options().Addr)
	assert.Equal(t, 2, byURL.Options().DB)

	byAddr, err := ConnectRedis("localhost:6379")
	require.NoError(t, err)
	defer byAddr.Close()
	assert.Equal(t, "localhost:6379", byAddr.Options().Addr)
}

type failingStore struct{ *MemoryStore }

func (f *failingStore) Put(context.Context, string, string, models.Fields) error {
	return errors.New("disk full")
}

func TestInstrumentedStore_CountsErrors(t *testing.T) {
	metrics := observability.NewMetricsWithRegistry(prometheus.NewRegistry())
	store := NewInstrumentedStore(&failingStore{MemoryStore: NewMemoryStore()}, "memory", metrics, zerolog.Nop())

	assert.Error(t, store.Put(context.Background(), models.TableBooks, bookID, models.Fields{}))
	_, _, err := store.Get(context.Background(), models.TableBooks, bookID)
	assert.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("memory", "put")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.StoreErrors.WithLabelValues("memory", "get")))
}
