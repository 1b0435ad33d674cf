package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListAllRecords_FollowsPagination(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/appBASE/Person", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("offset") == "" {
			fmt.Fprint(w, `{
				"records": [
					{"id": "rec00000000000001", "createdTime": "2023-01-01T00:00:00.000Z", "fields": {"Name": "Alice"}},
					{"id": "rec00000000000002", "createdTime": "2023-01-02T00:00:00.000Z", "fields": {"Name": "Bob"}}
				],
				"offset": "page2"
			}`)
			return
		}
		assert.Equal(t, "page2", r.URL.Query().Get("offset"))
		fmt.Fprint(w, `{
			"records": [
				{"id": "rec00000000000003", "createdTime": "2023-01-03T00:00:00.000Z", "fields": {"Name": "Carol"}}
			]
		}`)
	}))
	defer srv.Close()

	c := NewClient("key123", "appBASE", discardLogger(), WithBaseURL(srv.URL))
	records, err := c.ListAllRecords(context.Background(), "Person")
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, "Bearer key123", gotAuth)
	assert.Equal(t, "rec00000000000001", records[0].ID)
	assert.Equal(t, "Alice", records[0].Fields["Name"])
	assert.Equal(t, "rec00000000000003", records[2].ID)
}

func TestListAllRecords_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"NOT_FOUND"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("key123", "appBASE", discardLogger(), WithBaseURL(srv.URL))
	_, err := c.ListAllRecords(context.Background(), "Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestUpdateRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appBASE/Metatable/rec00000000000009", r.URL.Path)

		var body struct {
			Fields map[string]any `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2023-05-01T12:00:00.000Z", body.Fields["LastIngestedEdges"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "rec00000000000009", "createdTime": "2023-01-01T00:00:00.000Z",
			"fields": {"Name": "Person", "LastIngestedEdges": "2023-05-01T12:00:00.000Z"}}`)
	}))
	defer srv.Close()

	c := NewClient("key123", "appBASE", discardLogger(), WithBaseURL(srv.URL))
	rec, err := c.UpdateRecord(context.Background(), "Metatable", "rec00000000000009",
		map[string]any{"LastIngestedEdges": "2023-05-01T12:00:00.000Z"})
	require.NoError(t, err)
	assert.Equal(t, "rec00000000000009", rec.ID)
	assert.Equal(t, "Person", rec.Fields["Name"])
}
