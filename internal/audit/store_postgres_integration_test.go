//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ecplacas/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(pg.DB)
	s.Require().NoError(s.store.EnsureSchema(s.ctx))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	sessionID := uuid.New()
	record := &PlateQuery{
		SessionID:     sessionID,
		Plate:         "ABC0123",
		OriginalInput: "abc 123",
		Source:        "sri",
		Success:       true,
		FromCache:     false,
		ElapsedMs:     1200,
		CreatedAt:     time.Now().UTC().Truncate(time.Millisecond),
	}
	s.Require().NoError(s.store.Append(s.ctx, record))

	found, err := s.store.FindBySession(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Equal("ABC0123", found.Plate)
	s.Equal("abc 123", found.OriginalInput)
	s.True(found.Success)
	s.Equal(int64(1200), found.ElapsedMs)
}

func (s *PostgresStoreSuite) TestFailureRecord() {
	sessionID := uuid.New()
	s.Require().NoError(s.store.Append(s.ctx, &PlateQuery{
		SessionID:    sessionID,
		Plate:        "XYZ0999",
		Source:       "sri",
		Success:      false,
		ErrorMessage: "registry has no record",
		CreatedAt:    time.Now().UTC(),
	}))

	found, err := s.store.FindBySession(s.ctx, sessionID)
	s.Require().NoError(err)
	s.False(found.Success)
	s.Equal("registry has no record", found.ErrorMessage)
}

func (s *PostgresStoreSuite) TestMissingSession() {
	_, err := s.store.FindBySession(s.ctx, uuid.New())
	s.Require().ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestListRecent() {
	base := time.Now().UTC()
	for i, plate := range []string{"DDD0004", "EEE0005"} {
		s.Require().NoError(s.store.Append(s.ctx, &PlateQuery{
			SessionID: uuid.New(),
			Plate:     plate,
			Source:    "sri",
			CreatedAt: base.Add(time.Duration(i+1) * time.Hour),
		}))
	}

	records, err := s.store.ListRecent(s.ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("EEE0005", records[0].Plate)
}
