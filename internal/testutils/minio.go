//go:build integration

package testutils

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
)

const (
	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

// MinioEnv is a running Minio server with one bucket.
type MinioEnv struct {
	Container testcontainers.Container

	// BucketURL opens the bucket through gocloud's s3blob driver.
	BucketURL string
}

// Close terminates the container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container == nil {
		return nil
	}
	return e.Container.Terminate(ctx)
}

// OpenBucket opens the bucket for assertions.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// StartMinioContainer starts Minio, creates bucket with the mc client shipped
// in the image, and points the AWS credential variables at it for the rest of
// the test.
func StartMinioContainer(t *testing.T, ctx context.Context, bucket string) *MinioEnv {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     minioUser,
				"MINIO_ROOT_PASSWORD": minioPassword,
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio: %v", err)
	}
	env := &MinioEnv{Container: container}

	for _, cmd := range [][]string{
		{"mc", "alias", "set", "local", "http://localhost:9000", minioUser, minioPassword},
		{"mc", "mb", "--ignore-existing", "local/" + bucket},
	} {
		code, out, err := container.Exec(ctx, cmd)
		if err != nil || code != 0 {
			var detail []byte
			if out != nil {
				detail, _ = io.ReadAll(out)
			}
			env.Close(ctx)
			t.Fatalf("%v exited %d: %v %s", cmd, code, err, detail)
		}
	}

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "http")
	if err != nil {
		env.Close(ctx)
		t.Fatalf("minio endpoint: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioUser)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioPassword)

	env.BucketURL = fmt.Sprintf("s3://%s?endpoint=%s&use_path_style=true&disable_https=true&region=us-east-1", bucket, endpoint)
	return env
}
