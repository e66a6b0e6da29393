package views

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadTemplates_success(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() = %v; want nil", err)
	}
	if indexTmpl == nil {
		t.Fatal("LoadTemplates() left indexTmpl nil")
	}
}

func TestLoadTemplates_failure_sub(t *testing.T) {
	// Empty FS has no "templates" directory, so ParseFS finds no files.
	if err := loadTemplatesFromFS(fstest.MapFS{}, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(emptyFS) = nil; want error")
	}
}

func TestLoadTemplates_failure_parse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/index.html": {Data: []byte("{{ .")},
	}
	if err := loadTemplatesFromFS(badFS, "templates"); err == nil {
		t.Fatal("loadTemplatesFromFS(badFS) = nil; want error")
	}
}

func TestRenderIndex_notLoaded(t *testing.T) {
	prev := indexTmpl
	indexTmpl = nil
	t.Cleanup(func() { indexTmpl = prev })

	var buf bytes.Buffer
	err := RenderIndex(&buf, &IndexData{})
	if err == nil {
		t.Fatal("RenderIndex() = nil; want error when templates not loaded")
	}
	if !strings.Contains(err.Error(), "not loaded") {
		t.Errorf("err = %q; want message containing \"not loaded\"", err.Error())
	}
}

func TestRenderIndex_routes(t *testing.T) {
	if err := LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates(): %v", err)
	}

	var buf bytes.Buffer
	err := RenderIndex(&buf, &IndexData{
		Title:         "Climate API",
		ReferenceDate: "2017-08-23",
		Routes: []RouteLink{
			{Path: "/api/v1.0/stations", Description: "stations", Linked: true},
			{Path: "/api/v1.0/<start>", Description: "stats from start"},
		},
	})
	if err != nil {
		t.Fatalf("RenderIndex() = %v; want nil", err)
	}
	out := buf.String()
	if !strings.Contains(out, `<a href="/api/v1.0/stations">/api/v1.0/stations</a>`) {
		t.Errorf("output missing stations link; got %q", out)
	}
	if !strings.Contains(out, "/api/v1.0/&lt;start&gt;") {
		t.Errorf("parametrised route should be escaped text; got %q", out)
	}
	if strings.Contains(out, `href="/api/v1.0/&lt;start&gt;"`) {
		t.Errorf("parametrised route should not be linked; got %q", out)
	}
	if !strings.Contains(out, "2017-08-23") {
		t.Errorf("output missing reference date; got %q", out)
	}
}
