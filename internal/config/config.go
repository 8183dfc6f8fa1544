package config

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	NavigationConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	IsProduction() bool
}

type mainConfig struct {
	EnvVars
	API
	Store
	Navigation
}

func New() Config {
	return mainConfig{}
}
