package cmd

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wkbook/phonebook/server"
	"github.com/wkbook/phonebook/utils"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start a phonebook server",
	Long:  `The phonebook server houses the contacts API and user account management`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start(serverConfig(), isDevEnv)
	},
}

var serverConfigFile string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverConfigFile, "sconfig", "", "Config for server")
}

func serverConfig() *viper.Viper {
	config = viper.New()

	if isDevEnv {
		serverConfigFile = devConfigFilePath()
	}

	if serverConfigFile == "" {
		path, err := defaultServerConfigPath()
		cobra.CheckErr(err)
		serverConfigFile = path
	}

	// If the config file is not found, create one using defaultServerConfigValue
	if !utils.FileExist(serverConfigFile) {
		cobra.CheckErr(utils.CreateDirIfNotExist(filepath.Dir(serverConfigFile)))
		cobra.CheckErr(ioutil.WriteFile(serverConfigFile, []byte(defaultServerConfigValue()), 0600))
		fmt.Fprintln(os.Stderr, "Created starter server config:", serverConfigFile)
	}

	config.SetConfigFile(serverConfigFile)

	// JWT_SECRET & SENDGRID_API_KEY can come from the process env instead of
	// being stored in the config file. The env var wins when both are set.
	config.BindEnv("phonebook.jwtSecret", "JWT_SECRET")
	config.BindEnv("sendgrid.apiKey", "SENDGRID_API_KEY")
	config.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := config.ReadInConfig(); err != nil {
		cobra.CheckErr(formattedError("error reading server config file: %v", err))
	}

	return config
}

func devConfigFilePath() string {
	configDir, err := os.Getwd()
	cobra.CheckErr(err)

	return filepath.Join(configDir, "dev", "config", "server.yml")
}

func defaultServerConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, "phonebook", "server.yml"), nil
}

// defaultServerConfigValue returns the starter content written on first run.
func defaultServerConfigValue() string {
	return `phonebook:
  # Secret used to sign bearer tokens. Can also be set via the
  # JWT_SECRET env var instead of being stored here.
  jwtSecret:
  baseURL: "http://localhost:3000"
  cron:
    timeZone: "America/Toronto"
  listener:
    port: 3000

sqlite:
  passPhrase: passphrase

sendgrid:
  # apiKey can also be set via the SENDGRID_API_KEY env var.
  apiKey:
  sender:

google:
  applicationCredentials:
  storage:
    bucket:
    prefix:
    sqliteBackupSchedule: "*/30 * * * *"
    enableSqliteBackupAndSync: false
`
}
