package testcontainers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresInfo describes how to reach a started PostgreSQL container.
type PostgresInfo struct {
	Host     string
	User     string
	Password string
	Database string
	Port     int
}

// StartPostgres starts a disposable PostgreSQL container for archive tests.
// The returned info maps directly onto the archive database configuration.
func StartPostgres(ctx context.Context) (testcontainers.Container, PostgresInfo, error) {
	info := PostgresInfo{
		User:     "sensorhub",
		Password: "sensorhub",
		Database: "sensorhub_test",
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections"),
			),
			Env: map[string]string{
				"POSTGRES_USER":     info.User,
				"POSTGRES_PASSWORD": info.Password,
				"POSTGRES_DB":       info.Database,
			},
		},
		Started: true,
	})
	if err != nil {
		return nil, PostgresInfo{}, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, PostgresInfo{}, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, PostgresInfo{}, fmt.Errorf("failed to get container port: %w", err)
	}

	info.Host = host
	info.Port = port.Int()

	return container, info, nil
}
