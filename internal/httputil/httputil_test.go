// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echo struct {
	Value string `json:"value"`
}

func TestPostJSONSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		var in echo
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(echo{Value: in.Value + "!"})
	}))
	defer ts.Close()

	var out echo
	err := PostJSON(context.Background(), ts.Client(), ts.URL, map[string]string{"x-api-key": "secret"}, echo{Value: "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi!", out.Value)
}

func TestPostJSONStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer ts.Close()

	err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, echo{}, &echo{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
	assert.Contains(t, se.Error(), "slow down")
}

func TestPostJSONDecodeError(t *testing.T) {
	for _, body := range []string{"", "not json"} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(body))
		}))
		err := PostJSON(context.Background(), ts.Client(), ts.URL, nil, echo{}, &echo{})
		assert.ErrorIs(t, err, ErrDecode, "body %q", body)
		ts.Close()
	}
}

func TestPostJSONContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := PostJSON(ctx, ts.Client(), ts.URL, nil, echo{}, &echo{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		code int
		want Class
	}{
		{429, ClassRateLimited},
		{408, ClassTimeout},
		{504, ClassTimeout},
		{500, ClassTransient},
		{503, ClassTransient},
		{400, ClassPermanent},
		{401, ClassPermanent},
		{404, ClassPermanent},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.code), "code %d", tt.code)
	}
}
