package config

const (
	defaultDataDir             = "~/.local/share/archflow"
	defaultLogDir              = "~/.local/share/archflow/logs"
	defaultProfilePath         = "~/.config/archflow/workflow.xml"
	defaultCatalogCacheDir     = "~/.cache/archflow/catalog"
	defaultAPIBind             = "127.0.0.1:7490"
	defaultDatabaseDriver      = DriverSQLite
	defaultBusyTimeoutMS       = 5000
	defaultMaxOpenConns        = 10
	defaultMaxIdleConns        = 5
	defaultConnMaxLifetime     = 300
	defaultPageSize            = 100
	defaultMaxPageSize         = 1000
	defaultLocale              = "en"
	defaultCatalogTimeout      = 10
	defaultCatalogCacheTTL     = 86400
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultSQLiteDatabaseFile  = "archflow.db"
	defaultConfigRelativePath  = "~/.config/archflow/config.toml"
	defaultProjectConfigFile   = "archflow.toml"
	databaseDSNEnv             = "ARCHFLOW_DATABASE_DSN"
	databaseDriverEnv          = "ARCHFLOW_DATABASE_DRIVER"
	profilePathEnv             = "ARCHFLOW_PROFILE"
	defaultCatalogSearchField  = "barcode"
	defaultCatalogCacheEnabled = true
	defaultNotifyTimeout       = 10
	ntfyTopicEnv               = "ARCHFLOW_NTFY_TOPIC"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			Profile: defaultProfilePath,
			APIBind: defaultAPIBind,
		},
		Database: Database{
			Driver:                 defaultDatabaseDriver,
			BusyTimeoutMS:          defaultBusyTimeoutMS,
			MaxOpenConns:           defaultMaxOpenConns,
			MaxIdleConns:           defaultMaxIdleConns,
			ConnMaxLifetimeSeconds: defaultConnMaxLifetime,
		},
		Workflow: Workflow{
			DefaultPageSize: defaultPageSize,
			MaxPageSize:     defaultMaxPageSize,
			DefaultLocale:   defaultLocale,
		},
		CatalogCache: CatalogCache{
			Enabled: defaultCatalogCacheEnabled,
			Dir:     defaultCatalogCacheDir,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
