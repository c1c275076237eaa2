package mongorepos_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trezcool/schoolcrm/core"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
	"github.com/trezcool/schoolcrm/storage/database"
	mongorepos "github.com/trezcool/schoolcrm/storage/database/mongodb"
	"github.com/trezcool/schoolcrm/tests/storetest"
)

// TEST_MONGO_URI points to a MongoDB server; the schoolcrm_test database is dropped before each test.
func TestStore(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	conf := &core.Config{Env: "TEST", AppName: "SchoolCRM", Database: core.DatabaseConfig{URI: uri, Name: "schoolcrm_test"}}
	client, db, err := database.OpenMongo(ctx, conf)
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(ctx) }()

	logger := logsvc.NewRollbarLogger(log.New(os.Stderr, "TEST : ", 0), conf)
	logger.Enable(false)

	storetest.Run(t, func(t *testing.T) storetest.Repos {
		require.NoError(t, db.Drop(ctx))
		require.NoError(t, mongorepos.EnsureIndexes(ctx, db))
		return storetest.Repos{
			Teachers:   mongorepos.NewTeacherRepository(db),
			Classes:    mongorepos.NewClassRepository(db),
			Students:   mongorepos.NewStudentRepository(db),
			Enrollment: mongorepos.NewEnrollmentStore(db, logger),
		}
	})
}
