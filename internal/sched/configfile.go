package sched

import "github.com/BurntSushi/toml"

// LoadConfig reads a TOML config file, starting from DefaultConfig and
// overriding only the keys present in the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
