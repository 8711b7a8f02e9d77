package http

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/kart-io/docqa/pkg/errors"
	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	options "github.com/kart-io/docqa/pkg/options/server/http"
	"github.com/kart-io/docqa/pkg/utils/json"
	"github.com/kart-io/docqa/pkg/utils/response"
)

func TestServerLifecycle(t *testing.T) {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"

	s := NewServer(opts)
	s.Engine().GET("/ping", func(c *gin.Context) { response.OK(c, "pong") })

	require.NoError(t, s.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	}()

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(common.HeaderXRequestID))

	missing, err := http.Get("http://" + s.Addr() + "/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	body, err := io.ReadAll(missing.Body)
	require.NoError(t, err)
	var r response.Response
	require.NoError(t, json.Unmarshal(body, &r))
	assert.Equal(t, apierrors.ErrRouteNotFound.Code, r.Code)
}

func TestStartReportsBindError(t *testing.T) {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"
	first := NewServer(opts)
	require.NoError(t, first.Start(context.Background()))
	defer first.Stop(context.Background())

	clash := options.NewOptions()
	clash.Addr = first.Addr()
	assert.Error(t, NewServer(clash).Start(context.Background()))
}

func TestStopBeforeStart(t *testing.T) {
	assert.NoError(t, NewServer(nil).Stop(context.Background()))
}
