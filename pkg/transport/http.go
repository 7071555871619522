package transport

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPConfig configures the embedded serverless transport.
type HTTPConfig struct {
	Addr   string
	Logger *slog.Logger
}

// Serve runs the embedded serverless transport (component C2's
// serverless variant), built on gin-gonic/gin like the teacher's own
// HTTP surface. Each POST /invoke body is treated as one complete
// inbound record: handle is called with a fresh Transport whose
// Reader() yields exactly that one line and whose Writer() streams
// every record the handler produces back as the HTTP response body via
// gin.Context.Stream, ending when the handler's goroutine closes its
// output channel. GET /health reports liveness without touching handle.
//
// Serve blocks until ctx is done or the listener fails.
func Serve(ctx context.Context, cfg HTTPConfig, handle func(Transport)) error {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	router.POST("/invoke", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rt := newRequestTransport(body)
		handle(rt)

		c.Stream(func(w io.Writer) bool {
			chunk, ok := <-rt.out
			if !ok {
				return false
			}
			_, _ = w.Write(chunk)
			return true
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// requestTransport is the per-request Transport synthesized by the
// serverless adapter: its Reader yields the single inbound envelope
// line that arrived in the HTTP body, and its Writer streams every
// outbound record onto a channel the handler drains into the HTTP
// response.
type requestTransport struct {
	body *bytes.Reader
	out  chan []byte
}

func newRequestTransport(body []byte) *requestTransport {
	line := append(append([]byte(nil), body...), '\n')
	return &requestTransport{
		body: bytes.NewReader(line),
		out:  make(chan []byte, 8),
	}
}

func (r *requestTransport) Reader() io.Reader { return r.body }
func (r *requestTransport) Writer() io.Writer { return r }

func (r *requestTransport) Write(p []byte) (int, error) {
	chunk := append([]byte(nil), p...)
	r.out <- chunk
	return len(p), nil
}

// Close signals end-of-response to the streaming handler. The IO
// server calls this once the handler for the single inbound envelope
// has finished writing its terminal end-event.
func (r *requestTransport) Close() error {
	close(r.out)
	return nil
}
