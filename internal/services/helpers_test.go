package services

import (
	"io"
	"testing"
	"time"

	"github.com/justsurfingit/ats-job-tracker/internal/config"
	"github.com/justsurfingit/ats-job-tracker/internal/database"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.Connect(&config.Config{DBDriver: "sqlite", DatabaseURL: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }
