package update

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChecker(t *testing.T, handler http.HandlerFunc) *Checker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewChecker(afero.NewMemMapFs(), "cfg/crank", discardLogger())
	c.Endpoint = srv.URL
	c.Client = srv.Client()
	return c
}

func TestCheckReportsNewerRelease(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"tag_name":"v1.2.0","html_url":"https://github.com/dmelton/crank/releases/tag/v1.2.0"}`)
	})

	res, err := c.Check(context.Background(), "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "v1.0.0", res.Current)
	assert.Equal(t, "v1.2.0", res.Latest)
	assert.Equal(t, "https://github.com/dmelton/crank/releases/tag/v1.2.0", res.URL)
	assert.False(t, res.UpToDate())
}

func TestCheckUpToDateIgnoresVPrefix(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.0.0"}`)
	})

	res, err := c.Check(context.Background(), "1.0.0")
	require.NoError(t, err)
	assert.True(t, res.UpToDate())
}

func TestCheckRefreshesStamp(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":"v1.1.0"}`)
	})
	base := time.Now()
	c.now = func() time.Time { return base }

	require.True(t, c.Due(), "a fresh stamp dir must be due")

	_, err := c.Check(context.Background(), "v1.0.0")
	require.NoError(t, err)
	assert.False(t, c.Due(), "not due right after a successful check")

	c.now = func() time.Time { return base.Add(25 * time.Hour) }
	assert.True(t, c.Due(), "due again a day later")
}

func TestCheckServerErrorLeavesStampAlone(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Check(context.Background(), "v1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.True(t, c.Due(), "a failed check must not refresh the stamp")
}

func TestCheckRejectsMalformedResponse(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tag_name":`)
	})

	_, err := c.Check(context.Background(), "v1.0.0")
	require.Error(t, err)
}

func TestCheckRejectsMissingTag(t *testing.T) {
	c := newTestChecker(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"html_url":"https://example.com"}`)
	})

	_, err := c.Check(context.Background(), "v1.0.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tag")
}
