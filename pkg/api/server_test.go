package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/james-see/notesampler/pkg/config"
	"github.com/james-see/notesampler/pkg/mapping"
	"github.com/james-see/notesampler/pkg/sound"
	"github.com/james-see/notesampler/pkg/timeline"
)

type fakeBackend struct {
	played int
}

func (f *fakeBackend) Decode(r io.Reader) ([]byte, error) { return io.ReadAll(r) }

func (f *fakeBackend) Play([]byte) error {
	f.played++
	return nil
}

func (f *fakeBackend) Close() error { return nil }

func newTestServer(t *testing.T) (*gin.Engine, *fakeBackend) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sounds := t.TempDir()
	for _, group := range []string{"lalala", "piano"} {
		if err := os.MkdirAll(filepath.Join(sounds, group), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(sounds, group, "60.wav"), []byte(group), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Paths.SoundsDir = sounds
	cfg.Paths.MappingsDir = t.TempDir()

	lib := sound.NewLibrary(cfg.Paths.SoundsDir)
	store := mapping.NewStore(cfg.Paths.MappingsDir, lib, lib.DefaultGroup(), nil)
	backend := &fakeBackend{}
	player := sound.NewManager(lib, store, backend, nil)

	srv, err := NewServer(cfg, lib, store, player, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv.Router(), backend
}

func do(r http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return do(r, method, path, bytes.NewBufferString(body), "application/json")
}

func upload(t *testing.T, r http.Handler, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return do(r, http.MethodPost, "/api/v1/midi/parse", &body, mw.FormDataContentType())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(r, http.MethodGet, path, nil, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, w.Code)
		}
	}
}

func TestParse(t *testing.T) {
	r, _ := newTestServer(t)

	data, err := timeline.Encode([]timeline.Event{
		{Time: 0, Kind: timeline.ProgramChange, Channel: 0, Program: 40},
		{Time: 0.5, Kind: timeline.NoteOn, Channel: 0, Note: 60, Velocity: 100},
	}, 480)
	if err != nil {
		t.Fatal(err)
	}

	w := upload(t, r, "song.mid", data)
	if w.Code != http.StatusOK {
		t.Fatalf("parse = %d: %s", w.Code, w.Body.String())
	}
	var got timeline.Summary
	decode(t, w, &got)

	if got.Type != 0 || got.Resolution != 480 || got.Tracks != 1 {
		t.Errorf("header = (%d, %d, %d)", got.Type, got.Resolution, got.Tracks)
	}
	if len(got.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(got.Events))
	}
	note := got.Events[1]
	if note.Type != "note_on" || note.Time != 0.5 || *note.Note != 60 {
		t.Errorf("note event = %+v", note)
	}
	if note.Group == nil || *note.Group != "violin" {
		t.Errorf("note group = %v, want violin", note.Group)
	}
	if got.ChannelPrograms[0] != 40 || len(got.ChannelPrograms) != timeline.NumChannels {
		t.Errorf("channel_programs = %v", got.ChannelPrograms)
	}
}

func TestParseErrors(t *testing.T) {
	r, _ := newTestServer(t)

	// MThd header declaring format 2.
	format2 := []byte{'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 2, 0, 1, 0, 96}

	tests := []struct {
		name   string
		data   []byte
		status int
		kind   string
	}{
		{"not midi", []byte("RIFF....WAVE"), http.StatusUnsupportedMediaType, ""},
		{"short header", []byte("MThd\x00\x00"), http.StatusUnprocessableEntity, timeline.ErrMalformedHeader.Error()},
		{"format 2", format2, http.StatusUnprocessableEntity, timeline.ErrUnsupportedFormat.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := upload(t, r, "x.mid", tt.data)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.kind == "" {
				return
			}
			var body map[string]any
			decode(t, w, &body)
			if body["kind"] != tt.kind {
				t.Errorf("kind = %v, want %q", body["kind"], tt.kind)
			}
		})
	}

	w := do(r, http.MethodPost, "/api/v1/midi/parse", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("parse without file = %d, want 400", w.Code)
	}
}

func TestInstruments(t *testing.T) {
	r, _ := newTestServer(t)

	var table map[string]string
	w := do(r, http.MethodGet, "/api/v1/instruments", nil, "")
	decode(t, w, &table)
	if table["40"] != "violin" || len(table) != 13 {
		t.Fatalf("default table = %v", table)
	}

	w = doJSON(r, http.MethodPut, "/api/v1/instruments", `{"0":"organ"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT = %d: %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodGet, "/api/v1/instruments", nil, "")
	table = nil
	decode(t, w, &table)
	if len(table) != 1 || table["0"] != "organ" {
		t.Errorf("replaced table = %v", table)
	}

	if w := doJSON(r, http.MethodPut, "/api/v1/instruments", `{"200":"organ"}`); w.Code != http.StatusBadRequest {
		t.Errorf("PUT out of range program = %d, want 400", w.Code)
	}

	w = do(r, http.MethodPost, "/api/v1/instruments/reset", nil, "")
	table = nil
	decode(t, w, &table)
	if len(table) != 13 {
		t.Errorf("reset table has %d entries, want 13", len(table))
	}
}

func TestNotes(t *testing.T) {
	r, backend := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"plays", `{"note":60}`, http.StatusOK},
		{"missing sample", `{"note":61}`, http.StatusNotFound},
		{"out of range", `{"note":128}`, http.StatusBadRequest},
		{"no note", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/api/v1/notes/play", tt.body)
			if w.Code != tt.status {
				t.Errorf("play %s = %d, want %d: %s", tt.body, w.Code, tt.status, w.Body.String())
			}
		})
	}
	if backend.played != 1 {
		t.Errorf("backend played %d samples, want 1", backend.played)
	}

	if w := doJSON(r, http.MethodPut, "/api/v1/notes/60/group", `{"group":"piano"}`); w.Code != http.StatusOK {
		t.Fatalf("set group = %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	decode(t, do(r, http.MethodGet, "/api/v1/notes/60/group", nil, ""), &body)
	if body["group"] != "piano" {
		t.Errorf("group = %v, want piano", body["group"])
	}

	if w := doJSON(r, http.MethodPut, "/api/v1/notes/60/group", `{"group":"tuba"}`); w.Code != http.StatusBadRequest {
		t.Errorf("unknown group = %d, want 400", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/notes/abc/group", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric note = %d, want 400", w.Code)
	}
}

func TestMappings(t *testing.T) {
	r, _ := newTestServer(t)

	var groups struct {
		Groups  []string `json:"groups"`
		Default string   `json:"default"`
	}
	decode(t, do(r, http.MethodGet, "/api/v1/sound-groups", nil, ""), &groups)
	if len(groups.Groups) != 2 || groups.Default != "lalala" {
		t.Errorf("sound-groups = %+v", groups)
	}

	doJSON(r, http.MethodPut, "/api/v1/notes/36/group", `{"group":"piano"}`)
	if w := do(r, http.MethodPost, "/api/v1/mappings/kit", nil, ""); w.Code != http.StatusCreated {
		t.Fatalf("save = %d: %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/api/v1/mapping/reset", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("reset = %d", w.Code)
	}

	var body map[string]any
	decode(t, do(r, http.MethodGet, "/api/v1/notes/36/group", nil, ""), &body)
	if body["group"] != "lalala" {
		t.Errorf("group after reset = %v, want lalala", body["group"])
	}

	if w := do(r, http.MethodPost, "/api/v1/mappings/kit/load", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("load = %d: %s", w.Code, w.Body.String())
	}
	body = nil
	decode(t, do(r, http.MethodGet, "/api/v1/notes/36/group", nil, ""), &body)
	if body["group"] != "piano" {
		t.Errorf("group after load = %v, want piano", body["group"])
	}

	var list struct {
		Mappings []string `json:"mappings"`
	}
	decode(t, do(r, http.MethodGet, "/api/v1/mappings", nil, ""), &list)
	if len(list.Mappings) != 1 || list.Mappings[0] != "kit" {
		t.Errorf("mappings = %v", list.Mappings)
	}

	if w := do(r, http.MethodPost, "/api/v1/mappings/missing/load", nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("load missing = %d, want 404", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/mappings/.hidden", nil, ""); w.Code != http.StatusBadRequest {
		t.Errorf("save bad name = %d, want 400", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestServer(t)
	w := do(r, http.MethodOptions, "/api/v1/notes/play", nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
