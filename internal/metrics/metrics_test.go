package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestRecordDownload(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordDownload(ResultOK, 2048)
	m.RecordDownload(ResultCancelled, 100)

	body := scrape(t, m)
	if !strings.Contains(body, `localwork_downloads_total{result="ok"} 1`) {
		t.Errorf("expected one ok download:\n%s", body)
	}
	if !strings.Contains(body, "localwork_download_bytes_total 2048") {
		t.Errorf("cancelled bytes should not count:\n%s", body)
	}
}

func TestRecordModelLoad(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordModelLoad(ResultBusy, 0)
	if body := scrape(t, m); !strings.Contains(body, "localwork_model_loaded 0") {
		t.Errorf("busy load should not mark loaded:\n%s", body)
	}

	m.RecordModelLoad(ResultOK, 2*time.Second)
	if body := scrape(t, m); !strings.Contains(body, "localwork_model_loaded 1") {
		t.Errorf("expected loaded gauge 1:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordDownload(ResultOK, 1)
	m.RecordToolCall("read_file", true)
	m.RecordPermissionCheck(false)
}

func TestToolCallLabels(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordToolCall("list_files", false)
	m.RecordToolCall("read_file", true)

	body := scrape(t, m)
	if !strings.Contains(body, `localwork_tool_calls_total{result="ok",tool="list_files"} 1`) {
		t.Errorf("list_files metric missing:\n%s", body)
	}
	if !strings.Contains(body, `localwork_tool_calls_total{result="error",tool="read_file"} 1`) {
		t.Errorf("read_file error metric missing:\n%s", body)
	}
}
