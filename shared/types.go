package shared

type ServerConfig struct {
	Sqlite    SqliteConfig    `mapstructure:"sqlite" validate:"required"`
	Phonebook PhonebookConfig `mapstructure:"phonebook" validate:"required"`
	Sendgrid  SendgridConfig  `mapstructure:"sendgrid"`
	Google    GoogleConfig    `mapstructure:"google"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type PhonebookConfig struct {
	JwtSecret string         `mapstructure:"jwtSecret" validate:"required"`
	BaseURL   string         `mapstructure:"baseURL" validate:"required,url"`
	Cron      CronConfig     `mapstructure:"cron" validate:"required"`
	Listener  ListenerConfig `mapstructure:"listener" validate:"required"`
}

type SendgridConfig struct {
	ApiKey string `mapstructure:"apiKey"`
	Sender string `mapstructure:"sender" validate:"required_with=ApiKey,omitempty,email"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}
