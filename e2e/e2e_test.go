package e2e

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/riskcam/internal/app"
	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/metrics"
	"github.com/ayusman/riskcam/internal/server"
	"github.com/ayusman/riskcam/internal/store"
)

// fakeService answers risk and gallery requests like the detection backend.
func fakeService(t *testing.T, saves *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/risk_frame", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score":0.82,"indicators":["rope"],"timestamp":"2024-05-01T10:00:00"}`))
	})
	mux.HandleFunc("/api/capture_and_save", func(w http.ResponseWriter, r *http.Request) {
		saves.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"original":"risk.jpg"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// frameStream pushes distinct base64 frames to every client.
func frameStream(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; ; i++ {
			msg := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("jpeg-%d", i)))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, client *http.Client, url string, v any) int {
	t.Helper()
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestE2E_ScanToMonitor(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	var saves atomic.Int32
	backend := fakeService(t, &saves)
	stream := frameStream(t)

	s, err := store.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	cfg := &config.Config{}
	cfg.Backend.BaseURL = backend.URL
	cfg.Stream.URL = "ws" + strings.TrimPrefix(stream.URL, "http")
	cfg.Alert.Beep = new(bool)
	cfg.Scan.IntervalMs = 20
	cfg.Scan.InitialDelayMs = 1
	cfg.Journal.Images = true
	config.Normalize(cfg)

	m := metrics.New()
	application, err := app.New(app.Config{Settings: cfg, Metrics: m, Store: s})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	defer application.Close()
	scan := application.Scan()

	srv := server.New(server.Config{Store: s, Views: application.Views(), Metrics: m})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	if err := scan.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	var list struct {
		Alerts []store.Alert `json:"alerts"`
		Total  int           `json:"total"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for list.Total == 0 && time.Now().Before(deadline) {
		getJSON(t, client, ts.URL+"/api/alerts", &list)
		time.Sleep(20 * time.Millisecond)
	}
	if list.Total == 0 {
		t.Fatal("no alert reached the journal")
	}

	t.Run("AlertDetails", func(t *testing.T) {
		a := list.Alerts[0]
		if a.Source != app.ScanSource || a.Severity != "HIGH" {
			t.Errorf("alert = %+v", a)
		}
		if len(a.Indicators) != 1 || a.Indicators[0] != "rope" {
			t.Errorf("indicators = %v", a.Indicators)
		}
		if !a.HasImage {
			t.Error("alert image not journaled")
		}
	})

	t.Run("AlertImage", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/alerts/" + list.Alerts[0].ID + "/image")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "jpeg-") {
			t.Errorf("image status = %d body = %q", resp.StatusCode, body)
		}
	})

	t.Run("Status", func(t *testing.T) {
		var st struct {
			Views []struct {
				Name     string `json:"name"`
				State    string `json:"state"`
				Severity string `json:"severity"`
				Analyzed uint64 `json:"analyzed"`
			} `json:"views"`
		}
		if code := getJSON(t, client, ts.URL+"/api/status", &st); code != http.StatusOK {
			t.Fatalf("status code = %d", code)
		}
		if len(st.Views) != 1 || st.Views[0].Name != app.ModeScan {
			t.Fatalf("views = %+v", st.Views)
		}
		if st.Views[0].State != "active" || st.Views[0].Severity != "HIGH" || st.Views[0].Analyzed == 0 {
			t.Errorf("view = %+v", st.Views[0])
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), `riskcam_frames_analyzed_total{controller="scan"}`) {
			t.Error("metrics missing analyzed counter for scan")
		}
	})

	scan.Stop()
	application.Close()

	if saves.Load() == 0 {
		t.Error("no frame saved to the gallery")
	}
}
