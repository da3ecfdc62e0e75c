package webd

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
	"github.com/tidwall/gjson"
)

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://localhost/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

type testRequest struct {
	method, target, body string
	token                string
}

func serve(h http.Handler, tr testRequest) (*http.Response, string) {
	var body io.Reader
	if tr.body != "" {
		body = strings.NewReader(tr.body)
	}
	req := httptest.NewRequest(tr.method, "http://localhost"+tr.target, body)
	if tr.token != "" {
		req.Header.Set("Authorization", "Bearer "+tr.token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestWebDaemon_statusReport(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()
	d := newTestWebDaemon(t, "secret")
	resp, body := serve(d.NewRouter(), testRequest{method: "GET", target: "/status"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	if gjson.Get(body, "uptime").String() == "" {
		t.Error("uptime is empty")
	}
	if gjson.Get(body, "device_id").String() == "" {
		t.Error("device id is empty")
	}
	if gjson.Get(body, "active").Bool() {
		t.Error("should not be active")
	}
	if strings.Contains(body, "secret") {
		t.Error("status leaks the token")
	}
}

func TestWebDaemon_Ride(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()
	d := newTestWebDaemon(t, "")
	router := d.NewRouter()

	resp, body := serve(router, testRequest{method: "POST", target: "/session/start"})
	if resp.StatusCode != http.StatusOK || !gjson.Get(body, "active").Bool() {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	resp, _ = serve(router, testRequest{method: "POST", target: "/session/start"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start: got %d, want 409", resp.StatusCode)
	}

	resp, body = serve(router, testRequest{method: "POST", target: "/motion",
		body: `[{"x":0,"y":0,"z":1},{"x":0,"y":0.1,"z":1}]`})
	if resp.StatusCode != http.StatusOK || gjson.Get(body, "delivered").Int() != 2 {
		t.Fatalf("motion: %d %s", resp.StatusCode, body)
	}

	ndjson := `{"latitude":46.87,"longitude":-113.99,"accuracy":5}
{"latitude":46.871,"longitude":-113.99,"accuracy":50}
{"latitude":46.872,"longitude":-113.99,"accuracy":4}
`
	resp, body = serve(router, testRequest{method: "POST", target: "/fixes", body: ndjson})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fixes: %d %s", resp.StatusCode, body)
	}
	if got := gjson.Get(body, "received").Int(); got != 3 {
		t.Errorf("received: %d", got)
	}

	resp, body = serve(router, testRequest{method: "GET", target: "/last"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last: %d", resp.StatusCode)
	}
	if gjson.Get(body, "type").String() != "Feature" {
		t.Errorf("last is not a Feature: %s", body)
	}
	if gjson.Get(body, "properties.Seq").Int() != 2 {
		t.Errorf("last seq: %s", gjson.Get(body, "properties.Seq").Raw)
	}

	resp, body = serve(router, testRequest{method: "GET", target: "/waypoints?limit=10"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("waypoints: %d", resp.StatusCode)
	}
	if n := gjson.Get(body, "features.#").Int(); n != 2 {
		t.Errorf("waypoints: got %d features", n)
	}
	if n := gjson.Get(body, "features.0.properties.Motion.#").Int(); n != 2 {
		t.Errorf("first waypoint motion samples: %d", n)
	}

	resp, body = serve(router, testRequest{method: "POST", target: "/session/stop"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: %d %s", resp.StatusCode, body)
	}
	if gjson.Get(body, "active").Bool() {
		t.Error("still active after stop")
	}
	if gjson.Get(body, "stats.rides").Int() != 1 {
		t.Errorf("ride count: %s", body)
	}
	if gjson.Get(body, "stats.totalDistance").Float() < 200 {
		t.Errorf("total distance: %s", body)
	}

	resp, _ = serve(router, testRequest{method: "POST", target: "/session/stop"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop: got %d, want 409", resp.StatusCode)
	}

	resp, body = serve(router, testRequest{method: "DELETE", target: "/stats"})
	if resp.StatusCode != http.StatusOK || gjson.Get(body, "stats.rides").Int() != 0 {
		t.Errorf("clear: %d %s", resp.StatusCode, body)
	}
}

func TestWebDaemon_BadRequests(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	d := newTestWebDaemon(t, "")
	router := d.NewRouter()

	cases := []struct {
		name string
		req  testRequest
		want int
	}{
		{"bad fixes", testRequest{method: "POST", target: "/fixes", body: `{"latitude":`}, http.StatusBadRequest},
		{"bad motion array", testRequest{method: "POST", target: "/motion", body: `[{"x":"nope"}]`}, http.StatusBadRequest},
		{"bad limit", testRequest{method: "GET", target: "/waypoints?limit=zero"}, http.StatusBadRequest},
		{"no last", testRequest{method: "GET", target: "/last"}, http.StatusNoContent},
		{"empty fixes", testRequest{method: "POST", target: "/fixes", body: "  \n"}, http.StatusOK},
		{"wrong method", testRequest{method: "GET", target: "/session/start"}, http.StatusMethodNotAllowed},
		{"oversized fixes", testRequest{method: "POST", target: "/fixes",
			body: strings.Repeat(`{"latitude":1,"longitude":2,"accuracy":3}`+"\n", 100)}, http.StatusRequestEntityTooLarge},
		{"oversized motion array", testRequest{method: "POST", target: "/motion",
			body: "[" + strings.Repeat(`{"x":0,"y":0,"z":1},`, 100) + `{"x":0,"y":0,"z":1}]`}, http.StatusRequestEntityTooLarge},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := serve(router, c.req)
			if resp.StatusCode != c.want {
				t.Errorf("got %d want %d: %s", resp.StatusCode, c.want, body)
			}
		})
	}
}

func TestWebDaemon_Token(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	d := newTestWebDaemon(t, "secret")
	router := d.NewRouter()

	resp, _ := serve(router, testRequest{method: "POST", target: "/session/start"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("no token: got %d", resp.StatusCode)
	}
	resp, _ = serve(router, testRequest{method: "POST", target: "/session/start", token: "wrong"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("wrong token: got %d", resp.StatusCode)
	}
	resp, _ = serve(router, testRequest{method: "POST", target: "/session/start?api_token=secret"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("query token: got %d", resp.StatusCode)
	}
	resp, _ = serve(router, testRequest{method: "POST", target: "/session/stop", token: "secret"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("header token: got %d", resp.StatusCode)
	}
	// Reads stay open.
	resp, _ = serve(router, testRequest{method: "GET", target: "/stats"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stats: got %d", resp.StatusCode)
	}
}

func TestWebDaemon_CORS(t *testing.T) {
	d := newTestWebDaemon(t, "")
	resp, _ := serve(d.NewRouter(), testRequest{method: "GET", target: "/ping"})
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header: %v", resp.Header)
	}
}

func TestWebDaemon_BatchedOldFixes(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()
	d := newTestWebDaemon(t, "")
	router := d.NewRouter()
	if resp, body := serve(router, testRequest{method: "POST", target: "/session/start"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}

	// Recorded offline an hour ago, uploaded in one batch.
	recorded := time.Now().Add(-time.Hour).UnixMilli()
	batch := fmt.Sprintf(`[
{"coords":{"latitude":46.87,"longitude":-113.99,"accuracy":5},"timestamp":%d},
{"coords":{"latitude":46.871,"longitude":-113.99,"accuracy":5},"timestamp":%d},
{"coords":{"latitude":46.872,"longitude":-113.99,"accuracy":5},"timestamp":%d}]`,
		recorded, recorded+3000, recorded+6000)
	resp, body := serve(router, testRequest{method: "POST", target: "/fixes", body: batch})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("fixes: %d %s", resp.StatusCode, body)
	}
	if got := gjson.Get(body, "delivered").Int(); got != 3 {
		t.Errorf("delivered: got %d want 3", got)
	}
	if got := d.tracker.Observer.Snapshot().StreamErrors; got != 0 {
		t.Errorf("stream errors: %d", got)
	}

	resp, body = serve(router, testRequest{method: "POST", target: "/session/stop"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: %d %s", resp.StatusCode, body)
	}
	if got := gjson.Get(body, "stats.totalDistance").Float(); got < 200 {
		t.Errorf("total distance: %v", got)
	}
}

func TestWebDaemon_WaypointsSource(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelWarn + 1)()
	d := newTestWebDaemon(t, "")
	router := d.NewRouter()
	serve(router, testRequest{method: "POST", target: "/session/start"})
	serve(router, testRequest{method: "POST", target: "/fixes", body: `[
{"latitude":46.87,"longitude":-113.99,"accuracy":5},
{"latitude":46.871,"longitude":-113.99,"accuracy":5}]`})
	serve(router, testRequest{method: "POST", target: "/session/stop"})

	// Only in the cache; tells the two sources apart.
	extra := waypoint.Waypoint{Seq: 99}
	extra.Coordinate = fix.Coordinate{Latitude: 1, Longitude: 2}
	d.tracker.Cache.Submit(extra)

	cases := []struct {
		name    string
		limit   int
		want    int
		lastSeq int64
	}{
		{"cache holds enough", 2, 2, 99},
		{"falls back to state", 10, 2, 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, body := serve(router, testRequest{method: "GET", target: fmt.Sprintf("/waypoints?limit=%d", c.limit)})
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("waypoints: %d", resp.StatusCode)
			}
			if n := gjson.Get(body, "features.#").Int(); n != int64(c.want) {
				t.Errorf("features: got %d want %d", n, c.want)
			}
			lastPath := fmt.Sprintf("features.%d.properties.Seq", c.want-1)
			if seq := gjson.Get(body, lastPath).Int(); seq != c.lastSeq {
				t.Errorf("last seq: got %d want %d", seq, c.lastSeq)
			}
		})
	}
}
