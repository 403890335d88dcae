/*
 * trial-relay republishes a LIVE-only IPTV playlist from an automated trial account.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */
package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lucasduport/trial-relay/pkg/config"
	"github.com/lucasduport/trial-relay/pkg/server"
	"github.com/lucasduport/trial-relay/pkg/utils"
)

var cfgFile string

// envPrefix namespaces environment overrides, e.g. TRIAL_RELAY_PORT.
const envPrefix = "TRIAL_RELAY"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trial-relay",
	Short: "Republish a LIVE-only IPTV playlist from an automated free trial",
	Long: `trial-relay obtains a free-trial IPTV account from the provider website,
downloads the account's playlist, keeps only the live channels and serves the
result over HTTP.

Endpoints:
- /init      start a background refresh when the cache is stale
- /live.m3u  the cached LIVE-only playlist
- /get-m3u   redirect to the full playlist of the stored account
- /health    cache and refresh status
- /metrics   Prometheus metrics`,

	Run: func(cmd *cobra.Command, args []string) {
		utils.Configure(viper.GetString("log-level"), viper.GetBool("debug-logging"))
		if p := viper.GetString("log-file"); p != "" {
			if err := utils.SetLogFile(p); err != nil {
				log.Fatal(err)
			}
			defer utils.Close()
		}

		conf := relayConfigFromViper()
		if err := conf.Validate(); err != nil {
			log.Fatal(err)
		}

		srv, err := server.NewServer(conf)
		if err != nil {
			log.Fatal(err)
		}

		go func() {
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			s := <-sig
			utils.InfoLog("Received %s, waiting for a running refresh", s)
			if err := srv.Shutdown(viper.GetDuration("shutdown-timeout")); err != nil {
				utils.WarnLog("Refresh still running at exit: %v", err)
			}
			utils.Close()
			os.Exit(0)
		}()

		if err := srv.Serve(); err != nil {
			log.Fatal(err)
		}
	},
}

// relayConfigFromViper assembles the relay configuration from flags, config
// file and TRIAL_RELAY_* environment variables.
func relayConfigFromViper() *config.RelayConfig {
	conf := &config.RelayConfig{
		HostConfig: &config.HostConfiguration{
			Hostname: viper.GetString("hostname"),
			Port:     viper.GetInt("port"),
		},
		SiteURL:           viper.GetString("site-url"),
		MediaServerURL:    viper.GetString("media-server-url"),
		DataDir:           viper.GetString("data-dir"),
		CredentialFile:    viper.GetString("credential-file"),
		PlaylistFile:      viper.GetString("playlist-file"),
		Validity:          viper.GetDuration("validity"),
		DownloadTimeout:   viper.GetDuration("download-timeout"),
		PaceMin:           viper.GetDuration("pace-min"),
		PaceMax:           viper.GetDuration("pace-max"),
		VerifyCredentials: viper.GetBool("verify-credentials"),
		RefreshSchedule:   viper.GetString("refresh-schedule"),
		RefreshOnStart:    viper.GetBool("refresh-on-start"),
		User:              config.CredentialString(viper.GetString("user")),
		Password:          config.CredentialString(viper.GetString("password")),
	}
	if conf.PaceMax < conf.PaceMin {
		conf.PaceMax = conf.PaceMin
	}
	return conf
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.trial-relay.yaml)")

	// Server
	rootCmd.Flags().Int("port", 8080, "Listening port")
	rootCmd.Flags().String("hostname", "", "Hostname to advertise in logs")

	// Upstreams
	rootCmd.Flags().String("site-url", config.DefaultSiteURL, "Trial provider website")
	rootCmd.Flags().String("media-server-url", config.DefaultMediaServerURL, "Media server unlocked by the trial")

	// Files
	rootCmd.Flags().String("data-dir", ".", "Directory for the ledger and the playlist")
	rootCmd.Flags().String("credential-file", "credentials.txt", "Credential ledger file")
	rootCmd.Flags().String("playlist-file", "live.m3u", "Published LIVE-only playlist")

	// Refresh
	rootCmd.Flags().Duration("validity", config.DefaultValidity, "Validity window of credentials and the cached playlist")
	rootCmd.Flags().Duration("download-timeout", 30*time.Second, "Playlist download timeout")
	rootCmd.Flags().Duration("pace-min", 1200*time.Millisecond, "Minimum pause before registering")
	rootCmd.Flags().Duration("pace-max", 2*time.Second, "Maximum pause before registering")
	rootCmd.Flags().Bool("verify-credentials", false, "Check a stored credential on player_api.php before reusing it")
	rootCmd.Flags().String("refresh-schedule", config.DefaultSchedule, "Cron spec for background refresh triggers, empty to disable")
	rootCmd.Flags().Bool("refresh-on-start", false, "Trigger a refresh when the server starts")
	rootCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "How long to wait for a running refresh on exit")

	// Optional guard on the playlist endpoints
	rootCmd.Flags().String("user", "", "Username required on /live.m3u and /get-m3u (empty disables)")
	rootCmd.Flags().String("password", "", "Password required on /live.m3u and /get-m3u")

	// Logging
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("debug-logging", false, "Enable debug logging")
	rootCmd.Flags().String("log-file", "", "Write logs to this file instead of stderr")

	// Bind all flags to viper
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		log.Fatal("Error binding PFlags to viper")
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".trial-relay")
	}

	// Keys like "user" and "password" would otherwise pick up $USER.
	viper.SetEnvPrefix(envPrefix)
	// Replace hyphens with underscores in environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
