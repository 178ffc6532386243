package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// newEmptyGCS returns a client whose server knows no buckets or objects.
func newEmptyGCS(t *testing.T, projectID string) *GCSClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := gcs.NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return &GCSClient{client: client, bucket: "snapshots", projectID: projectID}
}

func TestGCSGetMissingObject(t *testing.T) {
	g := newEmptyGCS(t, "")

	_, err := g.Get(context.Background(), "exports/none.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGCSEnsureBucketNeedsProjectToCreate(t *testing.T) {
	g := newEmptyGCS(t, "")

	err := g.EnsureBucket(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GCS_PROJECT_ID")
}
