package config

import "github.com/spf13/viper"

// Viper keys honoured as overrides on top of the YAML file. Flags are bound
// to these keys by the CLI; NTES_<KEY> environment variables work too.
const (
	KeyPort      = "port"
	KeyOrigin    = "origin"
	KeyDataDir   = "data_dir"
	KeyRedisAddr = "redis_addr"
	KeyJWTSecret = "jwt_secret"
)

// LoadWithOverrides loads path and applies any keys set in v.
func LoadWithOverrides(path string, v *viper.Viper) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if v == nil {
		return cfg, nil
	}

	dataDirChanged := false
	if v.IsSet(KeyPort) && v.GetInt(KeyPort) != 0 {
		cfg.Server.Port = v.GetInt(KeyPort)
	}
	if s := v.GetString(KeyOrigin); s != "" {
		cfg.Server.Origin = s
	}
	if s := v.GetString(KeyDataDir); s != "" && s != cfg.Storage.DataDir {
		cfg.Storage.DataDir = s
		dataDirChanged = true
	}
	if s := v.GetString(KeyRedisAddr); s != "" {
		cfg.Backend.RedisAddr = s
	}
	if s := v.GetString(KeyJWTSecret); s != "" {
		cfg.Auth.JWTSecret = s
	}

	// Paths derived from the data dir follow it unless set explicitly in the file.
	if dataDirChanged {
		raw, _ := Load(path)
		if raw.Backend.DBPath == Default().Backend.DBPath {
			cfg.Backend.DBPath = ""
		}
		if raw.Backend.BlobDir == Default().Backend.BlobDir {
			cfg.Backend.BlobDir = ""
		}
	}
	if err := cfg.Finish(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
