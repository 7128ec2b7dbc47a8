package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"

	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestHTTPServerLifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	lc := fxtest.NewLifecycle(t)
	srv := NewHTTPServer(lc, router, ServerConfig{Port: "0"}, logger.NewNopLogger())
	assert.Nil(t, srv.Addr())

	lc.RequireStart()
	require.NotNil(t, srv.Addr())

	_, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	resp, err := http.Get("http://127.0.0.1:" + port + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	lc.RequireStop()
}

func TestHTTPServerPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	_, port, _ := net.SplitHostPort(ln.Addr().String())

	srv := &HTTPServer{
		server: &http.Server{Addr: "127.0.0.1:" + port, Handler: gin.New()},
		logger: logger.NewNopLogger(),
	}
	assert.Error(t, srv.start(context.Background()))
}
