package store_test

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/bytes-zone/beeps/pkg/document"
	"github.com/bytes-zone/beeps/pkg/hlc"
	"github.com/bytes-zone/beeps/pkg/nodeid"
	"github.com/bytes-zone/beeps/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestDocumentOwnedByQueriesJoinedOwnership(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("person@example.com", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	s := store.New(db)
	owned, err := s.DocumentOwnedBy(context.Background(), 1, "person@example.com")
	require.NoError(t, err)
	require.True(t, owned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPushPartsInsertsEachKindWithOnConflictDoNothing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	clock := hlc.NewAt(nodeid.NodeId(1), time.Unix(1, 0).UTC(), 0)
	doc := document.New().
		SetMinutesPerPing(60, clock).
		AddPing(time.Unix(2, 0).UTC())
	var ok bool
	doc, ok = doc.TagPing(time.Unix(2, 0).UTC(), "work", clock)
	require.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectExec("(?s)INSERT INTO minutes_per_pings.*ON CONFLICT DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("(?s)INSERT INTO pings.*ON CONFLICT DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("(?s)INSERT INTO tags.*ON CONFLICT DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE documents SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := store.New(db)
	err = s.PushParts(context.Background(), 1, doc.Split())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPullDocumentRebuildsFromRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	clock := time.Unix(10, 0).UTC()
	ping := time.Unix(20, 0).UTC()

	mock.ExpectQuery("SELECT minutes_per_ping, clock, counter, node_id FROM minutes_per_pings").
		WillReturnRows(sqlmock.NewRows([]string{"minutes_per_ping", "clock", "counter", "node_id"}).
			AddRow(uint16(60), clock, uint16(0), uint16(1)))

	mock.ExpectQuery("SELECT ping FROM pings").
		WillReturnRows(sqlmock.NewRows([]string{"ping"}).AddRow(ping))

	mock.ExpectQuery("SELECT ping, tag, clock, counter, node_id FROM tags").
		WillReturnRows(sqlmock.NewRows([]string{"ping", "tag", "clock", "counter", "node_id"}).
			AddRow(ping, "work", clock, uint16(0), uint16(1)))

	s := store.New(db)
	doc, err := s.PullDocument(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, uint16(60), doc.MinutesPerPing())
	require.True(t, doc.HasPing(ping))
	tag, ok := doc.GetTag(ping)
	require.True(t, ok)
	require.Equal(t, "work", tag)
	require.NoError(t, mock.ExpectationsWereMet())
}
