package handler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ggp-deploy/internal/config"
	"ggp-deploy/internal/model"
	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/internal/pkg/logger"
	"ggp-deploy/internal/service"
)

// scriptedRunner prints one line per invocation and exits with the code
// registered for the ggp subcommand.
type scriptedRunner struct {
	mu       sync.Mutex
	out      io.Writer
	codes    map[string]int
	err      error
	progress string
	calls    *[][]string
}

func (r *scriptedRunner) Run(_ context.Context, argv []string) (int, error) {
	r.mu.Lock()
	*r.calls = append(*r.calls, argv)
	r.mu.Unlock()
	if r.err != nil {
		return -1, r.err
	}
	sub := argv[1]
	if sub == "ssh" {
		sub = argv[2]
	}
	if sub == "sync" {
		io.WriteString(r.out, r.progress)
	}
	fmt.Fprintf(r.out, "ggp %s done\n", sub)
	return r.codes[sub], nil
}

type fixture struct {
	handler *DeployHandler
	engine  *gin.Engine
	calls   [][]string
}

func newFixture(t *testing.T, codes map[string]int, runErr error) *fixture {
	return newProgressFixture(t, codes, runErr, "")
}

// newProgressFixture writes progress to the output before the sync line.
func newProgressFixture(t *testing.T, codes map[string]int, runErr error, progress string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{}
	factory := func(out io.Writer) *service.DeployService {
		r := &scriptedRunner{out: out, codes: codes, err: runErr, progress: progress, calls: &f.calls}
		client := ggp.NewClient(ggp.Options{Runner: r})
		return service.NewDeployService(client, nil, config.GGPConfig{}, logger.Nop())
	}
	f.handler = NewDeployHandler(factory, nil, logger.Nop())

	f.engine = gin.New()
	f.engine.POST("/deploy", f.handler.Deploy)
	f.engine.GET("/stream", f.handler.Stream)
	f.engine.POST("/terminate", f.handler.Terminate)
	f.engine.POST("/fetch", f.handler.Fetch)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestDeploySuccess(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.post(t, "/deploy", `{"binary":"bazel-bin/projects/cube/cube","instance":"inst-1","binaryArgs":"--frame-count 3"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.DeployResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, "run", resp.Step)
	assert.NotEmpty(t, resp.TaskID)
	assert.Equal(t, []string{"assets", "bazel-bin/projects/cube/cube"}, resp.Sources)
	assert.Equal(t, "ggp sync done\nggp run done\n", resp.Output)
	require.Len(t, f.calls, 2)
	assert.Contains(t, f.calls[1], "bw/cube --frame-count 3")
}

func TestDeploySyncFailure(t *testing.T) {
	f := newFixture(t, map[string]int{"sync": 3}, nil)

	w := f.post(t, "/deploy", `{"binary":"out/cube"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.DeployResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 3, resp.ExitCode)
	assert.Equal(t, "sync", resp.Step)
	assert.Len(t, f.calls, 1)
}

func TestDeployInvalidRequests(t *testing.T) {
	f := newFixture(t, nil, nil)

	for _, body := range []string{
		`{`,
		`{"instance":"x"}`,
		`{"binary":"out/cube","appPath":"../../etc"}`,
		`{"binary":"out/cube","instance":"bad name"}`,
		`{"binary":"out/cube","binaryArgs":"\"open"}`,
		`{"binary":"out/cube","headless":true,"envVars":"not-an-assignment"}`,
		`{"binary":"out/cube","envVars":"RENDER_SCALE=2"}`,
	} {
		w := f.post(t, "/deploy", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(t, f.calls)
}

func TestDeploySpawnError(t *testing.T) {
	f := newFixture(t, nil, errors.New("exec: ggp: not found"))

	w := f.post(t, "/deploy", `{"binary":"out/cube"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeployBusy(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.handler.mu.Lock()
	defer f.handler.mu.Unlock()

	w := f.post(t, "/deploy", `{"binary":"out/cube"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = f.post(t, "/terminate", `{"process":"cube"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTerminate(t *testing.T) {
	f := newFixture(t, nil, nil)

	w := f.post(t, "/terminate", `{"instance":"inst-1","process":"cube"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, f.calls, 1)
	assert.Equal(t, `killall cube || echo "Already killed."`, f.calls[0][len(f.calls[0])-1])

	w = f.post(t, "/terminate", `{"process":"../cube"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFetch(t *testing.T) {
	f := newFixture(t, map[string]int{"get": 1}, nil)

	w := f.post(t, "/fetch", `{"sources":["/mnt/developer/bw/frame.ppm"],"destination":"out"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp model.CommandResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, 1, resp.ExitCode)
	assert.Equal(t, "step fetch failed: ggp exited with status 1", resp.Message)

	w = f.post(t, "/fetch", `{"sources":[],"destination":"out"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream(t *testing.T) {
	f := newFixture(t, nil, nil)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(model.DeployRequest{Binary: "out/cube", Headless: true}))

	var lines []string
	var result *model.DeployResponse
	for result == nil {
		var msg model.StreamMessage
		require.NoError(t, ws.ReadJSON(&msg))
		switch msg.Type {
		case "output":
			lines = append(lines, msg.Line)
		case "result":
			result = msg.Result
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}
	assert.Equal(t, []string{"ggp sync done", "ggp shell done"}, lines)
	assert.True(t, result.Success)
	assert.Equal(t, "run-headless", result.Step)
}

func TestStreamProgressOutput(t *testing.T) {
	var progress strings.Builder
	for i := 0; progress.Len() < 130*1024; i++ {
		fmt.Fprintf(&progress, "\rassets/textures/%04d.ktx  %3d%%  1.2MB/s", i, i%100)
	}
	progress.WriteString("\r\n")

	f := newProgressFixture(t, nil, nil, progress.String())
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(model.DeployRequest{Binary: "out/cube"}))

	var lines []string
	var result *model.DeployResponse
	for result == nil {
		var msg model.StreamMessage
		require.NoError(t, ws.ReadJSON(&msg))
		switch msg.Type {
		case "output":
			lines = append(lines, msg.Line)
		case "result":
			result = msg.Result
		default:
			t.Fatalf("unexpected message %+v", msg)
		}
	}
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "assets/textures/0000.ktx"))
	assert.Equal(t, []string{"ggp sync done", "ggp run done"}, lines[len(lines)-2:])
	for _, l := range lines {
		assert.NotContains(t, l, "\r")
	}
	assert.True(t, result.Success)
}

func TestScanOutputLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("a\r\nb\rc\n\nd\re"))
	scanner.Split(scanOutputLines)
	var got []string
	for scanner.Scan() {
		got = append(got, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"a", "b", "c", "", "d", "e"}, got)
}

func TestStreamRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t, nil, nil)
	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"binary":""}`)))
	var msg model.StreamMessage
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "error", msg.Type)
	require.NotNil(t, msg.Error)
	assert.Equal(t, 3001, msg.Error.Code)
	assert.Empty(t, f.calls)
}

func TestLockedBuffer(t *testing.T) {
	var b lockedBuffer
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Write([]byte("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, bytes.Repeat([]byte("x"), 10), []byte(b.String()))
}
