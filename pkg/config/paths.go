package config

import "path/filepath"

// Paths resolves the .drover data layout for one project.
type Paths struct {
	ProjectDir string
}

// DataDir is the .drover directory.
func (p Paths) DataDir() string {
	return filepath.Join(p.ProjectDir, DataDirName)
}

// ConfigFile is the drover.toml path.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.DataDir(), ConfigFileName)
}

// Document is the implementation plan document.
func (p Paths) Document() string {
	return filepath.Join(p.DataDir(), "implementation.json")
}

// SessionFile is the session record.
func (p Paths) SessionFile() string {
	return filepath.Join(p.DataDir(), "session.json")
}

// LogsDir holds per-session logs.
func (p Paths) LogsDir() string {
	return filepath.Join(p.DataDir(), "logs")
}

// MemoryDir holds the persisted completion memory.
func (p Paths) MemoryDir() string {
	return filepath.Join(p.DataDir(), "memory")
}

// SpecsDir holds the markdown spec sources plans are derived from.
func (p Paths) SpecsDir() string {
	return filepath.Join(p.DataDir(), "specs")
}
