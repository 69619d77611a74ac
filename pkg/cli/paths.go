package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the studio directory structure
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.studio)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.studio/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.studio/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// DataDir returns the per-context data directory
// (~/.studio/<app>/data/<context>). Sessions and local media of different
// contexts never mix.
func (p *Paths) DataDir(context string) string {
	if context == "" {
		context = "default"
	}
	return filepath.Join(p.AppDir(), "data", context)
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir(context string) (string, error) {
	dir := p.DataDir(context)
	return dir, os.MkdirAll(dir, 0755)
}
