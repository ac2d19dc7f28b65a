package stores

import (
	"coderooms/core"
	"coderooms/stores/filesystem"
	"coderooms/stores/memory"
	"coderooms/stores/redis"
	"coderooms/stores/sqlite"
	"fmt"
	"os"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// GetStore picks the activity store from STORAGE_TYPE.
func GetStore() (core.ActivityStore, error) {
	storageType := os.Getenv("STORAGE_TYPE")
	var (
		store core.ActivityStore
		err   error
	)

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data"
		}
		storageField["basePath"] = basePath
		store, err = filesystem.NewActivityStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "coderooms.db"
		}
		storageField["dataSourceName"] = dataSourceName
		storageField["cgo"] = sqlite.CGOEnabled
		store, err = sqlite.NewActivityStore(dataSourceName)
	case "redis":
		opts, optErr := redisOptions()
		if optErr != nil {
			return nil, optErr
		}
		storageField["redisAddr"] = opts.Addr
		store = redis.NewActivityStore(goredis.NewClient(opts))
	default:
		store = memory.NewActivityStore()
		storageField["storageType"] = "in-memory"
	}
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", storageType, err)
	}

	logrus.WithFields(storageField).Info("Use storage")
	return store, nil
}

func redisOptions() (*goredis.Options, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	opts := &goredis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", raw, err)
		}
		opts.DB = db
	}
	return opts, nil
}
