//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/wortschatz/internal/types"
)

const e2eAdminKey = "e2e-admin-key"

type wortschatzServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	logFile string
}

// startWortschatz launches the binary against dataDir and waits for health.
// Configuration is passed entirely through the environment.
func startWortschatz(t *testing.T, dataDir string) *wortschatzServer {
	t.Helper()
	requireWortschatz(t)

	port := freePort(t)
	address := fmt.Sprintf("127.0.0.1:%d", port)
	logFile := filepath.Join(dataDir, fmt.Sprintf("wortschatz-%d.log", time.Now().UnixNano()))

	cmd := exec.Command(wortschatzBin)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("WORTSCHATZ_PORT=%d", port),
		"WORTSCHATZ_DATA_ROOT="+dataDir,
		"WORTSCHATZ_ADMIN_KEY="+e2eAdminKey,
		"WORTSCHATZ_CONFIG_PATH="+filepath.Join(dataDir, "nonexistent.yaml"),
		"WORTSCHATZ_LOG_FORMAT=json",
	)

	lf, err := os.Create(logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start wortschatz: %v", err)
	}

	s := &wortschatzServer{
		cmd:     cmd,
		dataDir: dataDir,
		address: address,
		logFile: logFile,
	}

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		logs, _ := os.ReadFile(logFile)
		t.Fatalf("wortschatz not healthy: %v\n%s", err, logs)
	}

	return s
}

// stop sends SIGINT and waits, which lets the backup worker flush.
func (s *wortschatzServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil && s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *wortschatzServer) baseURL() string {
	return fmt.Sprintf("http://%s/api/v1", s.address)
}

func (s *wortschatzServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := s.baseURL() + "/health"

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("wortschatz not healthy after %s", timeout)
}

func (s *wortschatzServer) do(t *testing.T, method, path string, body any, admin bool) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.baseURL()+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set("X-API-Key", e2eAdminKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, data
}

func (s *wortschatzServer) addEntry(t *testing.T, lesson, source, target string) types.VocabularyEntry {
	t.Helper()
	status, data := s.do(t, http.MethodPost, "/vocab/"+lesson+"/",
		types.CreateEntryRequest{SourceText: source, TargetText: target}, false)
	if status != http.StatusCreated {
		t.Fatalf("add entry: status %d: %s", status, data)
	}
	var entry types.VocabularyEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	return entry
}

func (s *wortschatzServer) listVocab(t *testing.T, lesson string) []types.VocabularyEntry {
	t.Helper()
	status, data := s.do(t, http.MethodGet, "/vocab/"+lesson+"/", nil, false)
	if status != http.StatusOK {
		t.Fatalf("list vocab: status %d: %s", status, data)
	}
	var entries []types.VocabularyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	return entries
}

func (s *wortschatzServer) health(t *testing.T) types.HealthResponse {
	t.Helper()
	status, data := s.do(t, http.MethodGet, "/health", nil, false)
	if status != http.StatusOK {
		t.Fatalf("health: status %d: %s", status, data)
	}
	var h types.HealthResponse
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return h
}

func writeSeedFile(t *testing.T, dataDir, name string, pairs []types.Pair) {
	t.Helper()
	dir := filepath.Join(dataDir, "seed")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
