package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratep "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/freetnet/freetd/internal/service/impl"
	"github.com/freetnet/freetd/internal/storage/postgres"
)

var opts = struct {
	Fixture            string `long:"fixture" env:"FIXTURE" default:"fixture.json" description:"path to fixture"`
	Postgres           string `long:"postgres" env:"POSTGRES" default:"host=localhost port=5432 user=postgres password=root sslmode=disable" description:"postgres dsn"`
	PostgresMigrations string `long:"postgres.migrations" env:"POSTGRES_MIGRATIONS" default:"scripts/migrations/postgres" description:"postgres migrations directory"`
}{}

type fixture struct {
	Users []struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Verified bool   `json:"verified"`
	} `json:"users"`
	Freets []struct {
		Author    string `json:"author"`
		Content   string `json:"content"`
		ExpiresIn string `json:"expires_in,omitempty"`
	} `json:"freets"`
}

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "seeddb"
	parser.LongDescription = "Fixture to database importer"

	_, err := parser.Parse()

	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		logrus.WithError(err).Fatal("error occurred while parsing flags")
	}

	logrus.Info("seeddb started")
	logrus.Infof("%+v", opts)

	b, err := ioutil.ReadFile(opts.Fixture)
	if err != nil {
		logrus.WithError(err).Fatal("failed to read fixture")
	}

	var f fixture

	if err := json.Unmarshal(b, &f); err != nil {
		logrus.WithError(err).Fatal("failed to unmarshal fixture")
	}

	db := mustGetDB()
	s := impl.New(postgres.New(db))

	ctx := context.Background()
	users := make(map[string]string, len(f.Users))

	logrus.Info("import users")
	for _, v := range f.Users {
		u, err := s.CreateUser(ctx, v.Username, v.Password)
		if err != nil {
			logrus.WithError(err).WithField("username", v.Username).Fatal("failed to create user")
		}

		if v.Verified {
			if err := s.SetUserVerified(ctx, u.ID, true); err != nil {
				logrus.WithError(err).WithField("username", v.Username).Fatal("failed to verify user")
			}
		}

		users[v.Username] = u.ID
	}
	logrus.Infof("%d users imported", len(users))

	logrus.Info("import freets")
	for i, v := range f.Freets {
		authorID, ok := users[v.Author]
		if !ok {
			logrus.WithField("author", v.Author).Fatal("unknown author")
		}

		var expiresAt *time.Time
		if v.ExpiresIn != "" {
			d, err := time.ParseDuration(v.ExpiresIn)
			if err != nil {
				logrus.WithError(err).Fatal("failed to parse expires_in")
			}
			t := time.Now().Add(d)
			expiresAt = &t
		}

		if _, err := s.CreatePost(ctx, authorID, v.Content, expiresAt); err != nil {
			logrus.WithError(err).WithField("index", i).Fatal("failed to create freet")
		}
	}
	logrus.Infof("%d freets imported", len(f.Freets))
}

func mustGetDB() *sql.DB {
	db, err := sql.Open("postgres", opts.Postgres)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create postgres connection")
	}

	if err := db.PingContext(context.Background()); err != nil {
		logrus.WithError(err).Fatal("failed to ping postgres")
	}

	driver, err := migratep.WithInstance(db, &migratep.Config{})
	if err != nil {
		logrus.WithError(err).Fatal("failed to create database migrate driver")
	}

	migrator, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", opts.PostgresMigrations), "postgres", driver)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create migrator")
	}

	switch err := migrator.Up(); err {
	case nil:
		logrus.Info("database was migrated")
	case migrate.ErrNoChange:
		logrus.Info("database is up-to-date")
	default:
		logrus.WithError(err).Fatal("failed to migrate db")
	}

	return db
}
