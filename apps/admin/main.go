package main

import (
	"log"
	"os"

	"github.com/organquest/backend/core"
	"github.com/organquest/backend/storage/database"
	sqlxrepos "github.com/organquest/backend/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	if conf.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()

	cli := commandLine{
		db:       db,
		acctRepo: sqlxrepos.NewAccountRepository(db),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
