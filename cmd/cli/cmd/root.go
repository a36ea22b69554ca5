package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/angelospk/animatch/internal/server"
	"github.com/angelospk/animatch/pkg/core/storage"
)

// Configuration keys.
const (
	CfgKeyTMDBAPIKey   = "tmdb.apikey"
	CfgKeyTMDBProxy    = "tmdb.proxy"
	CfgKeyBangumiToken = "bangumi.token"
	CfgKeyBangumiProxy = "bangumi.proxy"
	CfgKeyStoragePath  = "storage.path"
	CfgKeyRuleWords    = "rules.words"
	CfgKeyRuleGroups   = "rules.groups"
	CfgKeyRuleRender   = "rules.render"
	CfgKeyRuleSpecial  = "rules.special"
)

var (
	// Used for flags.
	cfgFile string

	// RootCmd represents the base command when called without any
	// subcommands. Exported for use in tests.
	RootCmd = &cobra.Command{
		Use:   "animatch",
		Short: "Recognize anime release filenames and match them against TMDB and bgm.tv.",
		Long: `animatch turns messy fansub release names into structured media
records: title, season, episode, release group and technical tags,
optionally matched against the TMDB and bgm.tv catalogs.`,
	}
)

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.animatch/config.yaml)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".animatch"))
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ANIMATCH")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file (%s): %v\n", viper.ConfigFileUsed(), err)
		}
	}
}

// serverConfig folds the viper settings into the pipeline config.
func serverConfig() server.Config {
	return server.Config{
		TMDBAPIKey:   viper.GetString(CfgKeyTMDBAPIKey),
		TMDBProxy:    viper.GetString(CfgKeyTMDBProxy),
		BangumiToken: viper.GetString(CfgKeyBangumiToken),
		BangumiProxy: viper.GetString(CfgKeyBangumiProxy),
		CustomWords:  viper.GetStringSlice(CfgKeyRuleWords),
		CustomGroups: viper.GetStringSlice(CfgKeyRuleGroups),
		RenderRules:  viper.GetStringSlice(CfgKeyRuleRender),
		SpecialRules: viper.GetStringSlice(CfgKeyRuleSpecial),
	}
}

// openStore opens the configured recognition database, if any.
func openStore() (*storage.Store, error) {
	path := viper.GetString(CfgKeyStoragePath)
	if path == "" {
		return nil, nil
	}
	return storage.Open(path)
}
