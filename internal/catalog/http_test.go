package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/morea-atlas/campaign-player/internal/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_Load(t *testing.T) {
	server := httptest.NewServer(http.StripPrefix("/data", http.FileServer(http.Dir("testdata"))))
	defer server.Close()

	cat, err := HTTPSource{Client: api.New(server.URL+"/data", "")}.Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, cat.Routes, 2)
	assert.Len(t, cat.Campaigns, 2)
}

func TestHTTPSource_MissingDocument(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := HTTPSource{Client: api.New(server.URL, "")}.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routes.geojson")
}

func TestHTTPSource_EmptyDocuments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer server.Close()

	// campaigns.json receives the same empty collection, which lacks "campaigns"
	cat, err := HTTPSource{Client: api.New(server.URL, "")}.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cat.Campaigns)
}
