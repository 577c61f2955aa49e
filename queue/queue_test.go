package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mbolis/fieldsurvey/answer"
	"github.com/mbolis/fieldsurvey/database"
	"github.com/mbolis/fieldsurvey/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func sample(surId string) Survey {
	return Survey{
		SurID:    model.SurID(surId),
		Lat:      45.4642,
		Lon:      9.19,
		Checksum: "c1",
		Data: []Entry{
			{QuestionID: 0, PluginCode: model.SingleChoice, Answer: answer.Choice{Option: ptr("A")}},
			{QuestionID: 1, PluginCode: model.MultiChoice, Answer: answer.Choices{Options: []string{"A", "B"}}},
			{QuestionID: 2, PluginCode: model.Money, Answer: answer.Money{Value: "12.50"}},
			{QuestionID: 3, PluginCode: model.StarRating, Answer: answer.Stars{Value: 4}},
			{QuestionID: 4, PluginCode: model.ImageList, Answer: answer.Images{Images: []model.Image{
				{URI: "file:///tmp/a.jpg", Name: "a.jpg", Type: "image/jpeg"},
			}}},
		},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	list := []Survey{sample("42"), sample("43")}

	data, err := json.Marshal(list)
	require.NoError(t, err)

	var back []Survey
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, list, back)
}

func TestDecodeStoredShape(t *testing.T) {
	data := `[{"surId":42,"lat":45.1,"lon":9.2,"checksum":"abc","data":[
		{"questionId":0,"answer":"A","pluginCode":"CHO1"},
		{"questionId":1,"answer":["A","B"],"pluginCode":"CHOM"},
		{"questionId":2,"answer":4,"pluginCode":"STR5"},
		{"questionId":3,"answer":"hello","pluginCode":"TXT"},
		{"questionId":4,"answer":{"lat":1},"pluginCode":"GEO"}
	]}]`

	list, err := decode([]byte(data))
	require.NoError(t, err)
	require.Len(t, list, 1)

	s := list[0]
	assert.Equal(t, model.SurID("42"), s.SurID)
	assert.Equal(t, "abc", s.Checksum)
	require.Len(t, s.Data, 5)
	assert.Equal(t, answer.Choice{Option: ptr("A")}, s.Data[0].Answer)
	assert.Equal(t, answer.Choices{Options: []string{"A", "B"}}, s.Data[1].Answer)
	assert.Equal(t, answer.Stars{Value: 4}, s.Data[2].Answer)
	assert.Equal(t, answer.Text{Value: "hello"}, s.Data[3].Answer)
	assert.Equal(t, model.PluginCode("GEO"), s.Data[4].Answer.Code())
}

func TestTotalAndPendingCount(t *testing.T) {
	a := sample("42")
	b := sample("43")
	b.Data = b.Data[:2]
	stale := sample("42")
	stale.Checksum = "old"
	other := sample("99")

	list := []Survey{a, b, stale, other}
	assert.Equal(t, 5+2+5+5, Total(list))
	assert.Zero(t, Total(nil))

	survey := model.Survey{
		Checksum:    "c1",
		Completions: []model.Completion{{SurID: "42"}, {SurID: "43"}},
	}
	assert.Equal(t, 2, PendingCount(list, survey))
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func testStore(t *testing.T, store Store) {
	ctx := context.Background()

	list, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	want := []Survey{sample("42")}
	require.NoError(t, store.Save(ctx, want))
	require.NoError(t, store.Save(ctx, append(want, sample("43"))))

	list, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Survey{sample("42"), sample("43")}, list)

	require.NoError(t, store.Clear(ctx))
	list, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSQLiteStore(t *testing.T) {
	testStore(t, openSQLite(t))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	require.NoError(t, rdb.Del(context.Background(), Key).Err())

	testStore(t, NewRedisStore(rdb))
}

func TestSQLiteStoreErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	store := NewSQLiteStore(db)

	mock.ExpectQuery("SELECT value FROM kv").WithArgs(Key).WillReturnError(boom)
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT value FROM kv").WithArgs(Key).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("{not json"))
	_, err = store.Load(context.Background())
	assert.ErrorContains(t, err, "db.queue.decode")

	mock.ExpectExec("INSERT INTO kv").WillReturnError(boom)
	err = store.Save(context.Background(), []Survey{sample("42")})
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueAppendAndSettle(t *testing.T) {
	ctx := context.Background()
	q := New(openSQLite(t))

	require.NoError(t, q.Append(ctx, sample("1")))
	require.NoError(t, q.Append(ctx, sample("2")))

	batch, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	// appended while the batch is being flushed
	require.NoError(t, q.Append(ctx, sample("3")))

	require.NoError(t, q.Settle(ctx, len(batch), []Survey{batch[1]}))

	list, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.SurID("2"), list[0].SurID)
	assert.Equal(t, model.SurID("3"), list[1].SurID)

	require.NoError(t, q.Settle(ctx, 10, nil))
	list, err = q.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	q := New(openSQLite(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, q.Append(ctx, sample(fmt.Sprint(i))))
		}(i)
	}
	wg.Wait()

	list, err := q.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 10)
}
