package githubapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		wantAuth string
	}{
		{"anonymous", "", ""},
		{"token", "ghp_test", "Bearer ghp_test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"number":1,"title":"t"}`))
			}))
			defer srv.Close()

			// no trailing slash: NewClient adds it
			c, err := NewClient(Options{Token: tt.token, BaseURL: srv.URL})
			require.NoError(t, err)

			pr, _, err := c.PullRequests.Get(context.Background(), "aws", "aws-cdk", 1)
			require.NoError(t, err)
			assert.Equal(t, 1, pr.GetNumber())
			assert.Equal(t, "/repos/aws/aws-cdk/pulls/1", gotPath)
			assert.Equal(t, tt.wantAuth, gotAuth)
		})
	}
}

func TestNewClientBadBaseURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "http://[::1"})
	require.Error(t, err)
}
