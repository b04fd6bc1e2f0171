package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/remora/internal/jsonvalue"
	"github.com/five82/remora/internal/transmission"
	"github.com/five82/remora/internal/transmission/transmissiontest"
)

type obj = map[string]jsonvalue.Value

const testPassphraseEnv = "REMORA_TEST_PASSPHRASE"

type cliTestEnv struct {
	baseDir    string
	configPath string
	logPath    string
	trustDB    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		logPath:    filepath.Join(base, "logs", "remora.log"),
		trustDB:    filepath.Join(base, "trust.db"),
	}
	content := fmt.Sprintf(`default_server = "nas"

[[servers]]
id = "nas"
name = "NAS"
host = "daemon.local"
port = 9091
username = "alice"

[rpc]
max_retries = 0

[cache]
dir = %q

[trust]
db_path = %q

[credentials]
vault_path = %q
passphrase_env = %q

[log]
file = %q
`,
		filepath.Join(base, "cache"),
		env.trustDB,
		filepath.Join(base, "vault.json"),
		testPassphraseEnv,
		env.logPath,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(testPassphraseEnv, "")
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, doer transmission.Doer, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd := newRootCommand(cliEnv{httpClient: doer, stdin: stdin})
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func torrentObject() jsonvalue.Value {
	return jsonvalue.Object(obj{
		"id":           jsonvalue.Int(1),
		"name":         jsonvalue.String("ubuntu.iso"),
		"status":       jsonvalue.Int(4),
		"percentDone":  jsonvalue.Double(0.5),
		"totalSize":    jsonvalue.Int(4 << 30),
		"rateDownload": jsonvalue.Int(2 << 20),
		"eta":          jsonvalue.Int(125),
		"downloadDir":  jsonvalue.String("/downloads"),
		"hashString":   jsonvalue.String("abc123"),
		"files": jsonvalue.Array(jsonvalue.Object(obj{
			"name":           jsonvalue.String("ubuntu/ubuntu.iso"),
			"length":         jsonvalue.Int(4 << 30),
			"bytesCompleted": jsonvalue.Int(2 << 30),
		})),
		"fileStats": jsonvalue.Array(jsonvalue.Object(obj{
			"wanted":   jsonvalue.Bool(true),
			"priority": jsonvalue.Int(1),
		})),
		"trackerStats": jsonvalue.Array(jsonvalue.Object(obj{
			"host":                  jsonvalue.String("tracker.example:443"),
			"lastAnnounceSucceeded": jsonvalue.Bool(true),
			"seederCount":           jsonvalue.Int(42),
			"leecherCount":          jsonvalue.Int(7),
		})),
	})
}

func newDaemon() *transmissiontest.Server {
	return transmissiontest.NewServer().
		RequireSessionID("token-1").
		On(transmission.MethodSessionGet, transmissiontest.Success(jsonvalue.Object(obj{
			"rpc-version":             jsonvalue.Int(17),
			"version":                 jsonvalue.String("4.0.6"),
			"download-dir":            jsonvalue.String("/downloads"),
			"download-dir-free-space": jsonvalue.Int(10 << 30),
		}))).
		On(transmission.MethodSessionStats, transmissiontest.Success(jsonvalue.Object(obj{
			"downloadSpeed": jsonvalue.Int(2 << 20),
			"uploadSpeed":   jsonvalue.Int(0),
			"torrentCount":  jsonvalue.Int(1),
		}))).
		On(transmission.MethodTorrentGet, transmissiontest.Success(jsonvalue.Object(obj{
			"torrents": jsonvalue.Array(torrentObject()),
		}))).
		On(transmission.MethodTorrentAdd, transmissiontest.Success(jsonvalue.Object(obj{
			"torrent-added": jsonvalue.Object(obj{
				"id":         jsonvalue.Int(2),
				"name":       jsonvalue.String("debian.iso"),
				"hashString": jsonvalue.String("def456"),
			}),
		}))).
		On(transmission.MethodTorrentStart, transmissiontest.Success(jsonvalue.Object(nil))).
		On(transmission.MethodTorrentStop, transmissiontest.Success(jsonvalue.Object(nil))).
		On(transmission.MethodTorrentVerify, transmissiontest.Success(jsonvalue.Object(nil))).
		On(transmission.MethodTorrentRemove, transmissiontest.Success(jsonvalue.Object(nil))).
		On(transmission.MethodFreeSpace, transmissiontest.Success(jsonvalue.Object(obj{
			"path":       jsonvalue.String("/downloads"),
			"size-bytes": jsonvalue.Int(1 << 30),
		})))
}
