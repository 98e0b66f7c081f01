// Package setup registers the lite MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ServerName is the key the server is registered under in the client config.
const ServerName = "labpanel"

// DataDirEnv is the environment variable carrying the data directory.
const DataDirEnv = "LABPANEL_DATA_DIR"

// ServerEntry is a single MCP server entry in the client config.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DesktopConfig is the client configuration file. Keys other than
// mcpServers are preserved on save.
type DesktopConfig struct {
	MCPServers map[string]ServerEntry `json:"-"`
	other      map[string]json.RawMessage
}

// Options controls Configure.
type Options struct {
	BinaryPath string
	DataDir    string
}

// Status is the registration state of the server.
type Status struct {
	ConfigPath string   `json:"config_path"`
	Configured bool     `json:"configured"`
	BinaryPath string   `json:"binary_path,omitempty"`
	DataDir    string   `json:"data_dir"`
	Issues     []string `json:"issues"`
}

// DesktopConfigPath returns the platform location of the desktop client config.
func DesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json"), nil
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "Claude", "claude_desktop_config.json"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "Claude", "claude_desktop_config.json"), nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LoadDesktopConfig reads the config at path. A missing file yields an empty config.
func LoadDesktopConfig(path string) (*DesktopConfig, error) {
	config := &DesktopConfig{
		MCPServers: map[string]ServerEntry{},
		other:      map[string]json.RawMessage{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.other, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = map[string]ServerEntry{}
	}
	return config, nil
}

// Save writes the config to path, creating its directory.
func (c *DesktopConfig) Save(path string) error {
	out := make(map[string]interface{}, len(c.other)+1)
	for k, v := range c.other {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Configure adds or replaces the server entry in the config at path.
func Configure(path string, opts Options) error {
	config, err := LoadDesktopConfig(path)
	if err != nil {
		return err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := ServerEntry{Command: binary}
	if opts.DataDir != "" {
		entry.Env = map[string]string{DataDirEnv: opts.DataDir}
	}
	config.MCPServers[ServerName] = entry
	return config.Save(path)
}

// GetStatus reports whether the server is registered in the config at path
// and whether its binary and data directory exist.
func GetStatus(path, defaultDataDir string) (*Status, error) {
	status := &Status{ConfigPath: path, DataDir: defaultDataDir, Issues: []string{}}

	config, err := LoadDesktopConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered with the desktop client")
		return status, nil
	}

	status.Configured = true
	status.BinaryPath = entry.Command
	if dir := entry.Env[DataDirEnv]; dir != "" {
		status.DataDir = dir
	}
	if _, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	}
	if _, err := os.Stat(status.DataDir); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("data directory will be created on first run: %s", status.DataDir))
	}
	return status, nil
}

func findBinary() (string, error) {
	const name = "mcp-server-lite"
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if path, err := os.Executable(); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("binary %q not found", name)
}
