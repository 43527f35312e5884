package database

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-workers/internal/common/config"
)

func newElasticServer(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_IndexDocument(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}

	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := client.IndexDocument(context.Background(), "invoice-extractions", "doc-1", map[string]interface{}{
		"vendor_name_extracted": "Acme Corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "PUT /invoice-extractions/_doc/doc-1", gotPath)
	assert.Equal(t, "Acme Corp", gotBody["vendor_name_extracted"])
}

func TestElasticsearch_IndexDocumentError(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	err := client.IndexDocument(context.Background(), "invoice-extractions", "doc-1", map[string]interface{}{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "400"), err.Error())
}

func TestElasticsearch_Ping(t *testing.T) {
	client := newElasticServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, client.Ping(context.Background()))
}

func TestRedis_PingAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()

	client := NewRedis(config.RedisConfig{Address: addr})
	require.NoError(t, client.Ping(context.Background()))
	require.NoError(t, client.Close())

	mr.Close()
	unreachable := NewRedis(config.RedisConfig{Address: addr})
	defer unreachable.Close()
	assert.Error(t, unreachable.Ping(context.Background()))
}
