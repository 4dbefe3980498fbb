package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/kvd/internal/client"
	"github.com/leonardcser/kvd/internal/config"
	"github.com/leonardcser/kvd/internal/logger"
	"github.com/leonardcser/kvd/internal/tools"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting kv MCP server")

	addr := os.Getenv(config.EnvAddr)
	if addr == "" {
		addr = config.DefaultAddr
	}
	kv := client.New(addr)

	logger.Infof("Probing kvd at %s", addr)
	if err := kv.Ping(); err != nil {
		logger.Warnf("kvd not reachable: %v, attempting to start it", err)
		if startErr := startDaemon(); startErr != nil {
			logger.Errorf("Failed to start kvd: %v", startErr)
		}
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if err = kv.Ping(); err == nil {
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
		if err != nil {
			// Tools still register; each call reports the connection error.
			logger.Errorf("kvd still unreachable: %v", err)
		}
	}

	s := server.NewMCPServer(
		"kvd MCP",
		"0.1.0",
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	tools.Register(s, kv)
	logger.Infof("Registered kv-get, kv-put and kv-delete tools")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// startDaemon launches a detached kvd, looking next to this executable first
// and then on PATH.
func startDaemon() error {
	candidates := []string{}
	if exePath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exePath), "kvd"))
	}
	if path, err := exec.LookPath("kvd"); err == nil {
		candidates = append(candidates, path)
	}
	for _, bin := range candidates {
		if _, err := os.Stat(bin); err != nil {
			continue
		}
		cmd := exec.Command(bin)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.Env = os.Environ()
		return cmd.Start()
	}
	return exec.ErrNotFound
}
