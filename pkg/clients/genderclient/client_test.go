package genderclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/autoroster/pkg/core/gender"
	"github.com/jakechorley/autoroster/pkg/core/model"
)

func TestClassify(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var req batchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type out struct {
			ID           string `json:"id"`
			LikelyGender string `json:"likelyGender"`
		}
		var names []out
		for i, q := range req.PersonalNames {
			g := "male"
			if i%2 == 0 {
				g = "female"
			}
			names = append(names, out{ID: q.ID, LikelyGender: g})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"personalNames": names})
	}))
	defer server.Close()

	var queries []gender.Query
	for i := 0; i < 150; i++ {
		queries = append(queries, gender.Query{ID: fmt.Sprintf("p%d@x.edu", i), Name: "Name"})
	}

	c := NewClient(server.URL, "secret", nil)
	result, err := c.Classify(context.Background(), queries)
	require.NoError(t, err)

	assert.Equal(t, 2, requests, "150 names go in two batches")
	assert.Len(t, result, 150)
	assert.Equal(t, model.GenderFemale, result["p0@x.edu"])
	assert.Equal(t, model.GenderMale, result["p1@x.edu"])
}

func TestClassify_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer server.Close()

	c := NewClient(server.URL, "wrong", nil)
	_, err := c.Classify(context.Background(), []gender.Query{{ID: "a@x.edu", Name: "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "bad key")
}

func TestClassify_Empty(t *testing.T) {
	c := NewClient("http://unused.invalid", "", nil)
	result, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result)
}
