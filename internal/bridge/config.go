package bridge

import "path/filepath"

const (
	DefaultScriptName  = "pyserve27.py"
	DefaultConstructor = "PyClient"
	DefaultMethod      = "remote_call"
	DefaultCall        = "add"
)

// Config names the script, the client it builds and the call made per tick.
type Config struct {
	DataPath    string
	ScriptPath  string
	SearchPaths []string
	Constructor string
	Method      string
	Call        string
	Args        []any
}

// DefaultConfig mirrors the stock layout: <data>/pyserve27.py with <data>
// and <data>/Plugins/Lib appended to the search path.
func DefaultConfig(dataPath string) Config {
	return Config{
		DataPath:    dataPath,
		ScriptPath:  filepath.Join(dataPath, DefaultScriptName),
		SearchPaths: []string{dataPath, filepath.Join(dataPath, "Plugins", "Lib")},
		Constructor: DefaultConstructor,
		Method:      DefaultMethod,
		Call:        DefaultCall,
		Args:        []any{int64(45), int64(53)},
	}
}

// WithDefaults fills empty fields from DefaultConfig(c.DataPath).
func (c Config) WithDefaults() Config {
	def := DefaultConfig(c.DataPath)
	if c.ScriptPath == "" {
		c.ScriptPath = def.ScriptPath
	}
	if c.SearchPaths == nil {
		c.SearchPaths = def.SearchPaths
	}
	if c.Constructor == "" {
		c.Constructor = def.Constructor
	}
	if c.Method == "" {
		c.Method = def.Method
	}
	if c.Call == "" {
		c.Call = def.Call
		if c.Args == nil {
			c.Args = def.Args
		}
	}
	return c
}
