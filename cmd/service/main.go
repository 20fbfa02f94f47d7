package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/flatauth/api"
	"github.com/vocdoni/flatauth/db"
	"github.com/vocdoni/flatauth/db/mongodb"
	"go.vocdoni.io/dvote/log"
)

const (
	storageJSON  = "json"
	storageMongo = "mongo"
)

func main() {
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 3000, "listen port")
	flag.String("storage", storageJSON, "user storage, either json or mongo")
	flag.StringP("dataFile", "d", "public/userData.json", "JSON document holding the users")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "flatauth", "The name of the MongoDB database")
	flag.Bool("seed", false, "import the users of dataFile into the MongoDB storage on startup")
	flag.String("logLevel", "info", "log level (debug, info, warn, error)")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("FLATAUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	storageType := viper.GetString("storage")
	dataFile := viper.GetString("dataFile")
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	seed := viper.GetBool("seed")
	log.Init(viper.GetString("logLevel"), "stdout", nil)
	// initialize the user storage
	var storage db.Storage
	switch storageType {
	case storageJSON:
		jsonStorage, err := db.NewJSONStorage(dataFile)
		if err != nil {
			log.Fatalf("could not load the user store: %v", err)
		}
		storage = jsonStorage
	case storageMongo:
		mongoStorage, err := mongodb.New(mongoURL, mongoDB)
		if err != nil {
			log.Fatalf("could not create the MongoDB database: %v", err)
		}
		if seed {
			users, err := db.ReadUsersFile(dataFile)
			if err != nil {
				log.Fatalf("could not read the users to seed: %v", err)
			}
			added, err := mongoStorage.Import(users)
			if err != nil {
				log.Fatalf("could not seed the MongoDB database: %v", err)
			}
			log.Infow("users seeded", "file", dataFile, "added", added)
		}
		storage = mongoStorage
	default:
		log.Fatalf("unknown storage %q, use %q or %q", storageType, storageJSON, storageMongo)
	}
	defer storage.Close()
	// create the local API server
	server, err := api.New(&api.Config{
		Host: host,
		Port: port,
		DB:   storage,
	})
	if err != nil {
		log.Fatalf("could not create the API server: %v", err)
	}
	server.Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port, "storage", storageType)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
