package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/schoolcrm/apps/api/echo"
	"github.com/trezcool/schoolcrm/core"
	"github.com/trezcool/schoolcrm/core/analytics"
	"github.com/trezcool/schoolcrm/core/class"
	"github.com/trezcool/schoolcrm/core/enrollment"
	"github.com/trezcool/schoolcrm/core/student"
	"github.com/trezcool/schoolcrm/core/teacher"
	emailsvc "github.com/trezcool/schoolcrm/services/email"
	locksvc "github.com/trezcool/schoolcrm/services/lock"
	logsvc "github.com/trezcool/schoolcrm/services/logger"
	"github.com/trezcool/schoolcrm/storage/database"
	inmemdb "github.com/trezcool/schoolcrm/storage/database/inmem"
	mongorepos "github.com/trezcool/schoolcrm/storage/database/mongodb"
	sqlxrepos "github.com/trezcool/schoolcrm/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Closer releases a connection opened at start up.
	Closer struct {
		Name  string
		Close func(context.Context) error
	}

	ClosersParam struct {
		dig.In
		Closers []Closer `group:"closers"`
	}

	// Stores are the repositories of the configured database engine.
	Stores struct {
		dig.Out
		Teachers   teacher.Repository
		Classes    class.Repository
		Students   student.Repository
		Enrollment enrollment.Store
		Closer     Closer `group:"closers"`
	}

	LockerResult struct {
		dig.Out
		Locker enrollment.Locker
		Closer Closer `group:"closers"`
	}

	ServerParam struct {
		dig.In
		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator
		TeacherSvc *teacher.Service
		ClassSvc   *class.Service
		StudentSvc *student.Service
		Manager    *enrollment.Manager
		Analytics  *analytics.Service
	}
)

var noopCloser = func(context.Context) error { return nil }

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newStores opens the configured database, migrates it & returns its repositories.
func newStores(conf *core.Config, loggerParam DBLoggerParam) (Stores, error) {
	logger := loggerParam.Logger
	ctx := context.Background()

	switch conf.Database.Engine {
	case core.EngineMongo:
		client, db, err := database.OpenMongo(ctx, conf)
		if err != nil {
			return Stores{}, err
		}
		if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return Stores{}, err
		}
		logger.Info(fmt.Sprintf("connected to mongodb database %q", conf.Database.Name))
		return Stores{
			Teachers:   mongorepos.NewTeacherRepository(db),
			Classes:    mongorepos.NewClassRepository(db),
			Students:   mongorepos.NewStudentRepository(db),
			Enrollment: mongorepos.NewEnrollmentStore(db, logger),
			Closer:     Closer{Name: "mongodb", Close: client.Disconnect},
		}, nil

	case core.EnginePostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return Stores{}, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return Stores{}, err
		}
		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return Stores{}, err
		}
		logger.Info(fmt.Sprintf("connected to postgres database %q", conf.Database.Name))
		return Stores{
			Teachers:   sqlxrepos.NewTeacherRepository(db),
			Classes:    sqlxrepos.NewClassRepository(db),
			Students:   sqlxrepos.NewStudentRepository(db),
			Enrollment: sqlxrepos.NewEnrollmentStore(db),
			Closer:     Closer{Name: "postgres", Close: func(context.Context) error { return db.Close() }},
		}, nil

	case core.EngineMemory:
		logger.Warn("using the in-memory database: data is lost on exit")
		db := inmemdb.NewDB()
		return Stores{
			Teachers:   inmemdb.NewTeacherRepository(db),
			Classes:    inmemdb.NewClassRepository(db),
			Students:   inmemdb.NewStudentRepository(db),
			Enrollment: inmemdb.NewEnrollmentStore(db),
			Closer:     Closer{Name: "memory", Close: noopCloser},
		}, nil
	}
	return Stores{}, errors.Errorf("unknown database engine %q", conf.Database.Engine)
}

// newLocker returns a Redis lock shared by all instances when Redis is configured,
// and an in-process lock otherwise.
func newLocker(conf *core.Config, logger core.Logger) (LockerResult, error) {
	if conf.Redis.Addr == "" {
		return LockerResult{Locker: locksvc.NewLocal(), Closer: Closer{Name: "lock", Close: noopCloser}}, nil
	}
	client, err := locksvc.NewRedisClient(context.Background(), conf.Redis)
	if err != nil {
		return LockerResult{}, err
	}
	return LockerResult{
		Locker: locksvc.NewRedis(client, conf.Enrollment.LockTTL, logger),
		Closer: Closer{Name: "redis", Close: func(context.Context) error { return client.Close() }},
	}, nil
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTeacherGetter(repo teacher.Repository) class.TeacherGetter { return repo }
func newAnalyticsClasses(repo class.Repository) analytics.ClassRepository { return repo }
func newAnalyticsTeachers(repo teacher.Repository) analytics.TeacherRepository { return repo }

func newManager(
	conf *core.Config,
	store enrollment.Store,
	teachers class.TeacherGetter,
	locker enrollment.Locker,
	validate *validator.Validate,
	translator ut.Translator,
	mailer core.EmailService,
	logger core.Logger,
) *enrollment.Manager {
	return enrollment.NewManager(store, teachers, locker, validate, translator, mailer, logger, conf.Enrollment.Notify)
}

func newServer(p ServerParam) *echoapi.Server {
	return echoapi.NewServer(p.Conf.Server.Address, nil, &echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Translator: p.Translator,
		TeacherSvc: p.TeacherSvc,
		ClassSvc:   p.ClassSvc,
		StudentSvc: p.StudentSvc,
		Manager:    p.Manager,
		Analytics:  p.Analytics,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStores))
	must(c.Provide(newLocker))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newTeacherGetter))
	must(c.Provide(newAnalyticsClasses))
	must(c.Provide(newAnalyticsTeachers))
	must(c.Provide(teacher.NewService))
	must(c.Provide(class.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(analytics.NewService))
	must(c.Provide(newManager))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
