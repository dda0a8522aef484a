package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// CheckStrict rejects keys in path that the kind's config does not define.
func CheckStrict(path, kind string) error {
	var target any
	switch normalizeKind(kind) {
	case KindServer:
		target = &ServerConfig{}
	case KindHost:
		target = &HostConfig{}
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
	meta, err := toml.DecodeFile(path, target)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("config %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}
