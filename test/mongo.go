// Package test provides testing utilities for the flatauth service, such as
// the MongoDB test container.
package test

import (
	"context"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.vocdoni.io/dvote/util"
)

const (
	// MongoImage is the docker image used for the MongoDB test container.
	MongoImage = "mongo:7"
	// MongoPort is the port exposed by the MongoDB test container.
	MongoPort nat.Port = "27017/tcp"
)

// StartMongoContainer starts a MongoDB container for testing. It returns the
// container and any error encountered during startup. The connection string
// is available through container.Endpoint(ctx, "mongodb").
func StartMongoContainer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        MongoImage,
				ExposedPorts: []string{string(MongoPort)},
				WaitingFor: wait.ForAll(
					wait.ForLog("Waiting for connections"),
					wait.ForListeningPort(MongoPort),
				),
			},
			Started: true,
		})
}

// RandomDatabaseName returns a unique database name so tests sharing a
// container do not see each other's data.
func RandomDatabaseName() string {
	return fmt.Sprintf("flatauth-test-%s", util.RandomHex(8))
}
